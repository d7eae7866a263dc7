package circulation

import (
	"errors"
	"fmt"
	"time"
)

// BorrowSettings are the library-wide circulation rules.
type BorrowSettings struct {
	// TotalMissedPickUpAllow is the number of expired pickups after which a card is suspended.
	TotalMissedPickUpAllow int
	// EndSuspensionInDays is how long an escalation suspension lasts.
	EndSuspensionInDays int
	// BorrowAmountOnceTime is the lowest per-borrow limit a card override may use.
	BorrowAmountOnceTime int
	// CardRenewalWindowInDays is how long before expiry an Active card may already be extended.
	CardRenewalWindowInDays int
	// DigitalExtensionGraceInDays is how long after expiry a digital borrow may still be extended.
	DigitalExtensionGraceInDays int
}

// DefaultBorrowSettings returns the settings used when nothing is configured.
func DefaultBorrowSettings() BorrowSettings {
	return BorrowSettings{
		TotalMissedPickUpAllow:      3,
		EndSuspensionInDays:         7,
		BorrowAmountOnceTime:        5,
		CardRenewalWindowInDays:     30,
		DigitalExtensionGraceInDays: 30,
	}
}

// Validate rejects settings that would make the escalation or extension rules meaningless.
func (s BorrowSettings) Validate() error {
	var errs []error

	if s.TotalMissedPickUpAllow < 1 {
		errs = append(errs, fmt.Errorf("total missed pick up allow must be positive, got %d", s.TotalMissedPickUpAllow))
	}

	if s.EndSuspensionInDays < 1 {
		errs = append(errs, fmt.Errorf("end suspension in days must be positive, got %d", s.EndSuspensionInDays))
	}

	if s.BorrowAmountOnceTime < 1 {
		errs = append(errs, fmt.Errorf("borrow amount once time must be positive, got %d", s.BorrowAmountOnceTime))
	}

	if s.CardRenewalWindowInDays < 0 || s.DigitalExtensionGraceInDays < 0 {
		errs = append(errs, errors.New("renewal window and grace days must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidBorrowSettings}, errs...)...)
	}

	return nil
}

// SuspensionEnd is the end date of an escalation suspension starting at now.
func (s BorrowSettings) SuspensionEnd(now time.Time) time.Time {
	return now.AddDate(0, 0, s.EndSuspensionInDays)
}
