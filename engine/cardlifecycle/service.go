package cardlifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const (
	commandTypeConfirm    = "card_confirm"
	commandTypeReject     = "card_reject"
	commandTypeResend     = "card_resend_for_confirmation"
	commandTypeSuspend    = "card_suspend"
	commandTypeUnsuspend  = "card_unsuspend"
	commandTypeExtend     = "card_extend"
	commandTypeArchive    = "card_archive"
	commandTypeBorrowMore = "card_update_borrow_more"
	logAttrCardID         = "card_id"
	logAttrUserID         = "user_id"
)

// ErrNilCollaborator is returned when the payment lookup or the user directory is missing.
var ErrNilCollaborator = errors.New("payment lookup and user directory must not be nil")

// Store defines the reads the Service needs.
type Store interface {
	CardByID(ctx context.Context, id uuid.UUID) (circulation.LibraryCard, error)
	PackageByID(ctx context.Context, id uuid.UUID) (circulation.Package, error)
}

// Service runs the interactive card operations.
type Service struct {
	store    Store
	payments circulation.PaymentLookup
	users    circulation.UserDirectory
	runner   *shell.Runner
	clock    circulation.Clock
	settings circulation.BorrowSettings
	locale   circulation.Locale
}

// Option configures a Service.
type Option func(*Service) error

// WithClock sets the business clock.
func WithClock(clock circulation.Clock) Option {
	return func(s *Service) error {
		s.clock = clock
		return nil
	}
}

// WithSettings overrides the default borrow settings.
func WithSettings(settings circulation.BorrowSettings) Option {
	return func(s *Service) error {
		if err := settings.Validate(); err != nil {
			return err
		}

		s.settings = settings

		return nil
	}
}

// WithNotificationLocale sets the language of the emails triggered by card transitions.
func WithNotificationLocale(locale circulation.Locale) Option {
	return func(s *Service) error {
		s.locale = locale
		return nil
	}
}

// NewService creates a Service.
func NewService(
	store Store,
	payments circulation.PaymentLookup,
	users circulation.UserDirectory,
	runner *shell.Runner,
	options ...Option,
) (*Service, error) {
	if store == nil || runner == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	if payments == nil || users == nil {
		return nil, ErrNilCollaborator
	}

	clock, err := circulation.NewBusinessClock(circulation.DefaultBusinessTimezone)
	if err != nil {
		return nil, err
	}

	service := &Service{
		store:    store,
		payments: payments,
		users:    users,
		runner:   runner,
		clock:    clock,
		settings: circulation.DefaultBorrowSettings(),
		locale:   circulation.LocaleEnglish,
	}

	for _, option := range options {
		if err := option(service); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// ConfirmCard activates a Pending or Rejected card whose issuance transaction is Paid.
func (s *Service) ConfirmCard(ctx context.Context, cardID uuid.UUID) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeConfirm, func(ctx context.Context) (shell.Decision, error) {
		card, rejected, err := s.readCard(ctx, cardID)
		if rejected != nil || err != nil {
			return rejectedOr(rejected), err
		}

		pkg, rejected, err := s.readPackage(ctx, card.PackageID)
		if rejected != nil || err != nil {
			return rejectedOr(rejected), err
		}

		tx, err := s.findPaid(ctx, circulation.PaymentQuery{
			Code: card.TransactionCode,
			Type: circulation.TransactionCardIssuance,
		})
		if err != nil {
			return shell.Decision{}, err
		}

		return DecideConfirm(card, pkg, tx, s.clock.Now(), s.locale), nil
	})
}

// RejectCard rejects a Pending card.
func (s *Service) RejectCard(ctx context.Context, cardID uuid.UUID, reason string) (shell.HandlerResult, error) {
	return s.runCard(ctx, commandTypeReject, cardID, func(card circulation.LibraryCard) shell.Decision {
		return DecideReject(card, reason, s.clock.Now(), s.locale)
	})
}

// ResendForConfirmation moves a Rejected card back to Pending.
func (s *Service) ResendForConfirmation(ctx context.Context, cardID uuid.UUID) (shell.HandlerResult, error) {
	return s.runCard(ctx, commandTypeResend, cardID, DecideResend)
}

// SuspendCard suspends a card until endDate.
func (s *Service) SuspendCard(
	ctx context.Context,
	cardID uuid.UUID,
	endDate time.Time,
	reason string,
) (shell.HandlerResult, error) {
	return s.runCard(ctx, commandTypeSuspend, cardID, func(card circulation.LibraryCard) shell.Decision {
		return DecideSuspend(card, endDate, reason, s.clock.Now())
	})
}

// UnsuspendCard lifts the suspension of a card.
func (s *Service) UnsuspendCard(ctx context.Context, cardID uuid.UUID) (shell.HandlerResult, error) {
	return s.runCard(ctx, commandTypeUnsuspend, cardID, func(card circulation.LibraryCard) shell.Decision {
		return DecideUnsuspend(card, s.clock.Now())
	})
}

// CheckCardExtension tells whether the card could be extended right now. It writes nothing.
func (s *Service) CheckCardExtension(ctx context.Context, cardID uuid.UUID) (circulation.Outcome, error) {
	card, rejected, err := s.readCard(circulation.WithStrongConsistency(ctx), cardID)
	if err != nil {
		return circulation.Outcome{}, err
	}

	if rejected != nil {
		return circulation.Outcome{}, rejected
	}

	if err := CheckCardExtension(card, s.clock.Now(), s.settings); err != nil {
		return circulation.Outcome{}, err
	}

	return circulation.Outcome{Code: circulation.CodeCardExtensionAllowed}, nil
}

// ExtendCard extends a card after an online or cash payment.
func (s *Service) ExtendCard(ctx context.Context, command ExtendCommand) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeExtend, func(ctx context.Context) (shell.Decision, error) {
		card, rejected, err := s.readCard(ctx, command.CardID)
		if rejected != nil || err != nil {
			return rejectedOr(rejected), err
		}

		packageID := command.PackageID
		if packageID == uuid.Nil {
			packageID = card.PackageID
		}

		pkg, rejected, err := s.readPackage(ctx, packageID)
		if rejected != nil || err != nil {
			return rejectedOr(rejected), err
		}

		var tx *circulation.Transaction

		if command.Method == circulation.PaymentOnline && command.TransactionCode != "" {
			tx, err = s.findPaid(ctx, circulation.PaymentQuery{
				Code:  command.TransactionCode,
				Type:  circulation.TransactionCardExtension,
				Token: command.Token,
			})
			if err != nil {
				return shell.Decision{}, err
			}
		}

		return DecideExtend(command, card, pkg, tx, s.clock.Now(), s.settings, s.locale), nil
	})
}

// ArchiveCard detaches the card from userID and archives it.
// The detach happens before the commit. If the commit then fails the card is attached again.
func (s *Service) ArchiveCard(
	ctx context.Context,
	cardID, userID uuid.UUID,
	reason string,
) (shell.HandlerResult, error) {
	detached := false

	result, err := s.runner.Run(ctx, commandTypeArchive, func(ctx context.Context) (shell.Decision, error) {
		card, rejected, err := s.readCard(ctx, cardID)
		if rejected != nil || err != nil {
			return rejectedOr(rejected), err
		}

		decision := DecideArchive(card, userID, reason)
		if decision.HasError() != nil || detached {
			return decision, nil
		}

		if err := s.users.DetachCard(ctx, userID, cardID); err != nil {
			return shell.Decision{}, errors.Join(circulation.ErrUserDirectoryFailed, err)
		}

		detached = true

		return decision, nil
	})

	if err != nil && detached && !archivedMeanwhile(err) {
		s.reattach(ctx, userID, cardID, err)
	}

	return result, err
}

// UpdateBorrowMore sets the per-borrow limit override of a card.
func (s *Service) UpdateBorrowMore(
	ctx context.Context,
	cardID uuid.UUID,
	allow bool,
	maxItemOnceTime int,
) (shell.HandlerResult, error) {
	return s.runCard(ctx, commandTypeBorrowMore, cardID, func(card circulation.LibraryCard) shell.Decision {
		return DecideBorrowMore(card, allow, maxItemOnceTime, s.settings)
	})
}

func (s *Service) runCard(
	ctx context.Context,
	commandType string,
	cardID uuid.UUID,
	decide func(circulation.LibraryCard) shell.Decision,
) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandType, func(ctx context.Context) (shell.Decision, error) {
		card, rejected, err := s.readCard(ctx, cardID)
		if rejected != nil || err != nil {
			return rejectedOr(rejected), err
		}

		return decide(card), nil
	})
}

// readCard returns the card, or a business failure if it does not exist, or an infrastructure error.
func (s *Service) readCard(ctx context.Context, cardID uuid.UUID) (circulation.LibraryCard, *circulation.Failure, error) {
	card, err := s.store.CardByID(ctx, cardID)

	switch {
	case errors.Is(err, circulation.ErrNotFound):
		return circulation.LibraryCard{}, circulation.NotFound(circulation.CodeCardNotFound, cardEntity, cardID), nil
	case err != nil:
		return circulation.LibraryCard{}, nil, err
	default:
		return card, nil, nil
	}
}

func (s *Service) readPackage(ctx context.Context, packageID uuid.UUID) (circulation.Package, *circulation.Failure, error) {
	pkg, err := s.store.PackageByID(ctx, packageID)

	switch {
	case errors.Is(err, circulation.ErrNotFound):
		return circulation.Package{}, circulation.NotFound(circulation.CodePackageNotFound, "package", packageID), nil
	case err != nil:
		return circulation.Package{}, nil, err
	default:
		return pkg, nil, nil
	}
}

// findPaid returns nil without error when the lookup knows no Paid transaction for the query.
func (s *Service) findPaid(ctx context.Context, query circulation.PaymentQuery) (*circulation.Transaction, error) {
	tx, err := s.payments.FindPaid(ctx, query)

	switch {
	case errors.Is(err, circulation.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return &tx, nil
	}
}

func (s *Service) reattach(ctx context.Context, userID, cardID uuid.UUID, cause error) {
	if err := s.users.AttachCard(context.WithoutCancel(ctx), userID, cardID); err != nil {
		s.runner.Error(ctx, shell.LogMsgCompensationFailed,
			shell.LogAttrCommandType, commandTypeArchive,
			logAttrCardID, cardID.String(),
			logAttrUserID, userID.String(),
			shell.LogAttrError, errors.Join(cause, err).Error())
	}
}

func rejectedOr(rejected *circulation.Failure) shell.Decision {
	if rejected == nil {
		return shell.Decision{}
	}

	return shell.ErrorDecision(rejected)
}

// archivedMeanwhile reports whether a concurrent archive won, in which case the detach belongs to it.
func archivedMeanwhile(err error) bool {
	var failure *circulation.Failure
	return errors.As(err, &failure) && failure.Code == circulation.CodeCardAlreadyArchived
}
