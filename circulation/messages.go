package circulation

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Locale selects the language of user-visible messages. It is passed explicitly to every call that renders text.
type Locale struct {
	tag language.Tag
}

var (
	LocaleEnglish    = Locale{tag: language.English}
	LocaleVietnamese = Locale{tag: language.Vietnamese}
)

// ParseLocale parses a BCP 47 tag such as "vi" or "en-US". Unparsable input yields English.
func ParseLocale(s string) Locale {
	tag, err := language.Parse(s)
	if err != nil {
		return LocaleEnglish
	}

	return Locale{tag: tag}
}

// Tag returns the underlying language tag.
func (l Locale) Tag() language.Tag {
	if l.tag == language.Und {
		return language.English
	}

	return l.tag
}

func (l Locale) String() string {
	return l.Tag().String()
}

// Messages renders the localized text for a code.
type Messages interface {
	Lookup(locale Locale, code Code, args ...any) string
}

// CatalogMessages is a Messages implementation backed by an x/text message catalog.
type CatalogMessages struct {
	catalog   catalog.Catalog
	supported []language.Tag
	matcher   language.Matcher
}

// NewCatalogMessages builds the default English and Vietnamese catalog.
func NewCatalogMessages() (*CatalogMessages, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))

	for tag, entries := range defaultMessages {
		for code, text := range entries {
			if err := builder.SetString(tag, string(code), text); err != nil {
				return nil, err
			}
		}
	}

	supported := []language.Tag{language.English, language.Vietnamese}

	return &CatalogMessages{
		catalog:   builder,
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}, nil
}

// Lookup renders code in the best supported match for locale. Unknown codes render as the code itself.
func (m *CatalogMessages) Lookup(locale Locale, code Code, args ...any) string {
	_, index, _ := m.matcher.Match(locale.Tag())
	printer := message.NewPrinter(m.supported[index], message.Catalog(m.catalog))

	return printer.Sprintf(string(code), args...)
}

var defaultMessages = map[language.Tag]map[Code]string{
	language.English: {
		CodeNoChanges:              "Nothing needed to change.",
		CodeCopiesAdded:            "%[1]d copies were added.",
		CodeCopyUpdated:            "The copy status was updated.",
		CodeCopiesUpdated:          "%[1]d copies were updated.",
		CodeCopySoftDeleted:        "The copy was moved to the trash.",
		CodeCopiesSoftDeleted:      "%[1]d copies were moved to the trash.",
		CodeCopyRestored:           "The copy was restored.",
		CodeCopiesRestored:         "%[1]d copies were restored.",
		CodeCopyDeleted:            "The copy was deleted permanently.",
		CodeCopiesDeleted:          "%[1]d copies were deleted permanently.",
		CodeInventoryRecomputed:    "The inventory was recounted.",
		CodeCardConfirmed:          "The library card was activated.",
		CodeCardRejected:           "The library card was rejected.",
		CodeCardResent:             "The library card was sent for confirmation again.",
		CodeCardSuspended:          "The library card was suspended.",
		CodeCardUnsuspended:        "The library card suspension was lifted.",
		CodeCardExtensionAllowed:   "The library card can be extended.",
		CodeCardExtended:           "The library card was extended.",
		CodeCardArchived:           "The library card was archived.",
		CodeCardBorrowMoreUpdated:  "The borrowing limit of the card was updated.",
		CodeDigitalBorrowConfirmed: "The digital borrow was confirmed.",
		CodeDigitalBorrowExtended:  "The digital borrow was extended.",
		CodeDigitalBorrowActivated: "The digital borrow is ready.",
		CodeNotificationNotSent:    "The change was saved but the notification email could not be sent.",

		CodeInternalError:             "Something went wrong. Please try again later.",
		CodeConcurrencyConflict:       "The data was changed at the same time. Please try again.",
		CodeValidationFailed:          "Some fields are invalid.",
		CodeBatchRejected:             "No item was changed because some items were rejected.",
		CodeCopyNotFound:              "Copy %[1]s was not found.",
		CodeCatalogItemNotFound:       "Catalog item %[1]s was not found.",
		CodeCardNotFound:              "Library card %[1]s was not found.",
		CodePackageNotFound:           "Package %[1]s was not found.",
		CodeUserNotFound:              "User %[1]s was not found.",
		CodeResourceNotFound:          "Resource %[1]s was not found.",
		CodeDigitalBorrowNotFound:     "Digital borrow %[1]s was not found.",
		CodePaymentNotFound:           "No paid transaction %[1]s was found.",
		CodePaymentMismatch:           "The payment does not match this request.",
		CodePaymentTokenInvalid:       "The payment token is invalid or expired.",
		CodeCopyStatusConflict:        "The copy cannot change from %[1]s to %[2]s.",
		CodeCopyInTrash:               "The copy is in the trash and cannot change from %[1]s to %[2]s.",
		CodeCopyDeletionConflict:      "The copy cannot change from %[1]s to %[2]s.",
		CodeCopyEncumbered:            "Copy %[1]s has open loans or requests.",
		CodeCopyHasDependentHistory:   "Copy %[1]s has condition history and cannot be deleted.",
		CodeMissingPlacement:          "Copy %[1]s cannot be shelved because its title has no shelf.",
		CodeInventoryMissing:          "The inventory of catalog item %[1]s is missing.",
		CodeCardStatusConflict:        "The library card cannot change from %[1]s to %[2]s.",
		CodeCardNotActivated:          "The library card has not been activated yet.",
		CodeCardSuspendedNoExtension:  "A suspended library card cannot be extended.",
		CodeCardNotDueForExtension:    "The library card can be extended from %[1]s.",
		CodeCardAlreadyArchived:       "The library card is already archived.",
		CodeCardArchiveWhileSuspended: "A suspended library card cannot be archived.",
		CodeDigitalBorrowStatus:       "The digital borrow cannot change from %[1]s to %[2]s.",
		CodeDigitalBorrowTooLate:      "The digital borrow expired too long ago to be extended.",

		CodeFieldRequired:       "is required",
		CodeFieldNotInFuture:    "must be in the future",
		CodeFieldTooLong:        "is too long",
		CodeFieldBelowMinimum:   "is below the allowed minimum",
		CodeFieldDuplicate:      "contains duplicates",
		CodeFieldEmptySelection: "must contain at least one item",
	},
	language.Vietnamese: {
		CodeNoChanges:              "Không có thay đổi nào.",
		CodeCopiesAdded:            "Đã thêm %[1]d bản sao.",
		CodeCopyUpdated:            "Đã cập nhật trạng thái bản sao.",
		CodeCopiesUpdated:          "Đã cập nhật %[1]d bản sao.",
		CodeCopySoftDeleted:        "Đã chuyển bản sao vào thùng rác.",
		CodeCopiesSoftDeleted:      "Đã chuyển %[1]d bản sao vào thùng rác.",
		CodeCopyRestored:           "Đã khôi phục bản sao.",
		CodeCopiesRestored:         "Đã khôi phục %[1]d bản sao.",
		CodeCopyDeleted:            "Đã xóa vĩnh viễn bản sao.",
		CodeCopiesDeleted:          "Đã xóa vĩnh viễn %[1]d bản sao.",
		CodeInventoryRecomputed:    "Đã kiểm kê lại tồn kho.",
		CodeCardConfirmed:          "Thẻ thư viện đã được kích hoạt.",
		CodeCardRejected:           "Thẻ thư viện đã bị từ chối.",
		CodeCardResent:             "Thẻ thư viện đã được gửi xác nhận lại.",
		CodeCardSuspended:          "Thẻ thư viện đã bị tạm khóa.",
		CodeCardUnsuspended:        "Thẻ thư viện đã được mở khóa.",
		CodeCardExtensionAllowed:   "Thẻ thư viện có thể gia hạn.",
		CodeCardExtended:           "Thẻ thư viện đã được gia hạn.",
		CodeCardArchived:           "Thẻ thư viện đã được lưu trữ.",
		CodeCardBorrowMoreUpdated:  "Đã cập nhật giới hạn mượn của thẻ.",
		CodeDigitalBorrowConfirmed: "Đã xác nhận lượt mượn tài liệu số.",
		CodeDigitalBorrowExtended:  "Đã gia hạn lượt mượn tài liệu số.",
		CodeDigitalBorrowActivated: "Tài liệu số đã sẵn sàng.",
		CodeNotificationNotSent:    "Thay đổi đã được lưu nhưng không gửi được email thông báo.",

		CodeInternalError:             "Đã có lỗi xảy ra. Vui lòng thử lại sau.",
		CodeConcurrencyConflict:       "Dữ liệu vừa được thay đổi cùng lúc. Vui lòng thử lại.",
		CodeValidationFailed:          "Một số trường không hợp lệ.",
		CodeBatchRejected:             "Không có mục nào được thay đổi vì một số mục bị từ chối.",
		CodeCopyNotFound:              "Không tìm thấy bản sao %[1]s.",
		CodeCatalogItemNotFound:       "Không tìm thấy đầu sách %[1]s.",
		CodeCardNotFound:              "Không tìm thấy thẻ thư viện %[1]s.",
		CodePackageNotFound:           "Không tìm thấy gói %[1]s.",
		CodeUserNotFound:              "Không tìm thấy người dùng %[1]s.",
		CodeResourceNotFound:          "Không tìm thấy tài liệu %[1]s.",
		CodeDigitalBorrowNotFound:     "Không tìm thấy lượt mượn số %[1]s.",
		CodePaymentNotFound:           "Không tìm thấy giao dịch đã thanh toán %[1]s.",
		CodePaymentMismatch:           "Thanh toán không khớp với yêu cầu này.",
		CodePaymentTokenInvalid:       "Mã thanh toán không hợp lệ hoặc đã hết hạn.",
		CodeCopyStatusConflict:        "Bản sao không thể chuyển từ %[1]s sang %[2]s.",
		CodeCopyInTrash:               "Bản sao đang ở thùng rác và không thể chuyển từ %[1]s sang %[2]s.",
		CodeCopyDeletionConflict:      "Bản sao không thể chuyển từ %[1]s sang %[2]s.",
		CodeCopyEncumbered:            "Bản sao %[1]s đang có lượt mượn hoặc yêu cầu mượn.",
		CodeCopyHasDependentHistory:   "Bản sao %[1]s có lịch sử tình trạng và không thể xóa.",
		CodeMissingPlacement:          "Không thể đưa bản sao %[1]s lên kệ vì đầu sách chưa có kệ.",
		CodeInventoryMissing:          "Thiếu dữ liệu tồn kho của đầu sách %[1]s.",
		CodeCardStatusConflict:        "Thẻ thư viện không thể chuyển từ %[1]s sang %[2]s.",
		CodeCardNotActivated:          "Thẻ thư viện chưa được kích hoạt.",
		CodeCardSuspendedNoExtension:  "Thẻ thư viện đang bị khóa nên không thể gia hạn.",
		CodeCardNotDueForExtension:    "Thẻ thư viện có thể gia hạn từ %[1]s.",
		CodeCardAlreadyArchived:       "Thẻ thư viện đã được lưu trữ.",
		CodeCardArchiveWhileSuspended: "Không thể lưu trữ thẻ thư viện đang bị khóa.",
		CodeDigitalBorrowStatus:       "Lượt mượn số không thể chuyển từ %[1]s sang %[2]s.",
		CodeDigitalBorrowTooLate:      "Lượt mượn số đã hết hạn quá lâu để gia hạn.",

		CodeFieldRequired:       "là bắt buộc",
		CodeFieldNotInFuture:    "phải là một thời điểm trong tương lai",
		CodeFieldTooLong:        "quá dài",
		CodeFieldBelowMinimum:   "thấp hơn mức tối thiểu cho phép",
		CodeFieldDuplicate:      "có giá trị trùng lặp",
		CodeFieldEmptySelection: "phải có ít nhất một mục",
	},
}
