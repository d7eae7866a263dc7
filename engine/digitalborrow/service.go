package digitalborrow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/engine/shell"
)

const (
	commandTypeConfirm   = "digital_borrow_confirm"
	commandTypeExtension = "digital_borrow_extend"
	commandTypeActivate  = "digital_borrow_activate"
)

// ErrNilCollaborator is returned when the payment lookup or the user directory is missing.
var ErrNilCollaborator = errors.New("payment lookup and user directory must not be nil")

// Store defines the reads the Service needs.
type Store interface {
	ResourceByID(ctx context.Context, id uuid.UUID) (circulation.DigitalResource, error)
	DigitalBorrowByID(ctx context.Context, id uuid.UUID) (circulation.DigitalBorrow, error)
	DigitalBorrowByTransactionCode(ctx context.Context, code string) (circulation.DigitalBorrow, error)
	ExtensionByTransactionCode(ctx context.Context, code string) (circulation.ExtensionHistory, error)
}

// Service runs the digital borrow operations.
type Service struct {
	store    Store
	payments circulation.PaymentLookup
	users    circulation.UserDirectory
	runner   *shell.Runner
	clock    circulation.Clock
	settings circulation.BorrowSettings
	locale   circulation.Locale
	newID    func() uuid.UUID
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

// WithNotificationLocale sets the language of confirmation and extension emails.
func WithNotificationLocale(locale circulation.Locale) Option {
	return func(s *Service) error {
		s.locale = locale
		return nil
	}
}

// WithIDGenerator replaces uuid.New for new borrows and extension rows.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) error {
		s.newID = newID
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
		newID:    uuid.New,
	}

	for _, option := range options {
		if err := option(service); err != nil {
			return nil, err
		}
	}

	return service, nil
}

// Confirm creates a digital borrow for a paid transaction.
func (s *Service) Confirm(ctx context.Context, command ConfirmCommand) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeConfirm, func(ctx context.Context) (shell.Decision, error) {
		var snapshot ConfirmSnapshot

		existing, err := s.store.DigitalBorrowByTransactionCode(ctx, command.TransactionCode)
		if snapshot.Existing, err = found(existing, err); err != nil {
			return shell.Decision{}, err
		}

		if snapshot.Existing == nil {
			if snapshot.UserExists, err = s.users.UserExists(ctx, command.UserID); err != nil {
				return shell.Decision{}, errors.Join(circulation.ErrUserDirectoryFailed, err)
			}

			resource, err := s.store.ResourceByID(ctx, command.ResourceID)
			if snapshot.Resource, err = found(resource, err); err != nil {
				return shell.Decision{}, err
			}

			if snapshot.Transaction, err = s.findPaid(ctx, circulation.PaymentQuery{
				Code:  command.TransactionCode,
				Type:  circulation.TransactionDigitalBorrow,
				Token: command.Token,
				Date:  command.Date,
			}); err != nil {
				return shell.Decision{}, err
			}
		}

		return DecideConfirm(command, snapshot, s.clock.Now(), s.newID, s.locale), nil
	})
}

// ConfirmExtension extends a digital borrow for a paid extension transaction.
func (s *Service) ConfirmExtension(ctx context.Context, command ExtensionCommand) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeExtension, func(ctx context.Context) (shell.Decision, error) {
		var snapshot ExtensionSnapshot

		borrow, err := s.store.DigitalBorrowByID(ctx, command.DigitalBorrowID)
		if snapshot.Borrow, err = found(borrow, err); err != nil {
			return shell.Decision{}, err
		}

		if snapshot.Borrow == nil {
			return DecideExtension(command, snapshot, s.clock.Now(), s.settings, s.newID, s.locale), nil
		}

		extension, err := s.store.ExtensionByTransactionCode(ctx, command.TransactionCode)
		if snapshot.Existing, err = found(extension, err); err != nil {
			return shell.Decision{}, err
		}

		resource, err := s.store.ResourceByID(ctx, borrow.ResourceID)
		if snapshot.Resource, err = found(resource, err); err != nil {
			return shell.Decision{}, err
		}

		if snapshot.Transaction, err = s.findPaid(ctx, circulation.PaymentQuery{
			Code:  command.TransactionCode,
			Type:  circulation.TransactionDigitalExtension,
			Token: command.Token,
			Date:  command.Date,
		}); err != nil {
			return shell.Decision{}, err
		}

		return DecideExtension(command, snapshot, s.clock.Now(), s.settings, s.newID, s.locale), nil
	})
}

// Activate flips a Prepared borrow to Active.
func (s *Service) Activate(ctx context.Context, digitalBorrowID uuid.UUID) (shell.HandlerResult, error) {
	return s.runner.Run(ctx, commandTypeActivate, func(ctx context.Context) (shell.Decision, error) {
		borrow, err := s.store.DigitalBorrowByID(ctx, digitalBorrowID)

		switch {
		case errors.Is(err, circulation.ErrNotFound):
			return shell.ErrorDecision(
				circulation.NotFound(circulation.CodeDigitalBorrowNotFound, borrowEntity, digitalBorrowID),
			), nil
		case err != nil:
			return shell.Decision{}, err
		}

		return DecideActivate(borrow), nil
	})
}

func (s *Service) findPaid(ctx context.Context, query circulation.PaymentQuery) (*circulation.Transaction, error) {
	tx, err := s.payments.FindPaid(ctx, query)
	return found(tx, err)
}

// found turns a single-row read into a pointer that is nil when the row does not exist.
func found[T any](row T, err error) (*T, error) {
	switch {
	case errors.Is(err, circulation.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return &row, nil
	}
}
