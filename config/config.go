package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

// Environment variables read when the matching flag is not given.
const (
	EnvDSN                  = "CIRCULATION_DSN"
	EnvReplicaDSN           = "CIRCULATION_REPLICA_DSN"
	EnvAdapter              = "CIRCULATION_ADAPTER"
	EnvTimezone             = "CIRCULATION_TIMEZONE"
	EnvInterval             = "CIRCULATION_RECONCILE_INTERVAL"
	EnvLocale               = "CIRCULATION_LOCALE"
	EnvMissedPickUpAllow    = "CIRCULATION_MISSED_PICK_UP_ALLOW"
	EnvSuspensionDays       = "CIRCULATION_SUSPENSION_DAYS"
	EnvBorrowAmount         = "CIRCULATION_BORROW_AMOUNT"
	EnvCardRenewalWindow    = "CIRCULATION_CARD_RENEWAL_WINDOW_DAYS"
	EnvDigitalExtensionDays = "CIRCULATION_DIGITAL_EXTENSION_GRACE_DAYS"
	EnvOTLPEnabled          = "CIRCULATION_OTLP_ENABLED"
	EnvOTLPEndpoint         = "CIRCULATION_OTLP_ENDPOINT"
	EnvMigrate              = "CIRCULATION_MIGRATE"
)

const defaultReconcileInterval = 10 * time.Second

// ErrInvalidConfig is returned when a flag or environment value cannot be parsed or is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete configuration of cmd/circulationd.
type Config struct {
	Postgres          Postgres
	Observability     Observability
	Timezone          string
	ReconcileInterval time.Duration
	Locale            circulation.Locale
	Settings          circulation.BorrowSettings
	Migrate           bool
}

// Load parses args and falls back to getenv for every flag that was not set on the command line.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Config{
		Postgres:      DefaultPostgres(),
		Observability: DefaultObservability(),
		Settings:      circulation.DefaultBorrowSettings(),
	}

	var (
		locale       string
		otlpEndpoint string
	)

	fs := flag.NewFlagSet("circulationd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Postgres.DSN, "dsn", "", "primary postgres DSN")
	fs.StringVar(&cfg.Postgres.ReplicaDSN, "replica-dsn", "", "read replica postgres DSN (optional)")
	fs.StringVar(&cfg.Postgres.Adapter, "adapter", AdapterPGXPool, "database adapter: pgxpool, sqldb or sqlx")
	fs.StringVar(&cfg.Timezone, "timezone", circulation.DefaultBusinessTimezone, "business timezone")
	fs.DurationVar(&cfg.ReconcileInterval, "interval", defaultReconcileInterval, "reconciliation interval")
	fs.StringVar(&locale, "locale", "en", "locale of notifications")
	fs.IntVar(&cfg.Settings.TotalMissedPickUpAllow, "missed-pick-up-allow", cfg.Settings.TotalMissedPickUpAllow,
		"missed pick-ups before a card is suspended")
	fs.IntVar(&cfg.Settings.EndSuspensionInDays, "suspension-days", cfg.Settings.EndSuspensionInDays,
		"length of an automatic suspension in days")
	fs.IntVar(&cfg.Settings.BorrowAmountOnceTime, "borrow-amount", cfg.Settings.BorrowAmountOnceTime,
		"items a card may borrow at once")
	fs.IntVar(&cfg.Settings.CardRenewalWindowInDays, "card-renewal-window-days", cfg.Settings.CardRenewalWindowInDays,
		"days before expiry from which a card may be extended")
	fs.IntVar(&cfg.Settings.DigitalExtensionGraceInDays, "digital-extension-grace-days",
		cfg.Settings.DigitalExtensionGraceInDays, "days after expiry a digital borrow may still be extended")
	fs.BoolVar(&cfg.Observability.Enabled, "otlp", false, "export traces and metrics via OTLP")
	fs.StringVar(&otlpEndpoint, "otlp-endpoint", cfg.Observability.TraceEndpoint, "OTLP gRPC endpoint")
	fs.BoolVar(&cfg.Migrate, "migrate", false, "create the schema before starting")

	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}

	if err := applyEnv(fs, getenv); err != nil {
		return Config{}, err
	}

	cfg.Locale = circulation.ParseLocale(locale)
	cfg.Observability.TraceEndpoint = otlpEndpoint
	cfg.Observability.MetricEndpoint = otlpEndpoint

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var envByFlag = map[string]string{
	"dsn":                          EnvDSN,
	"replica-dsn":                  EnvReplicaDSN,
	"adapter":                      EnvAdapter,
	"timezone":                     EnvTimezone,
	"interval":                     EnvInterval,
	"locale":                       EnvLocale,
	"missed-pick-up-allow":         EnvMissedPickUpAllow,
	"suspension-days":              EnvSuspensionDays,
	"borrow-amount":                EnvBorrowAmount,
	"card-renewal-window-days":     EnvCardRenewalWindow,
	"digital-extension-grace-days": EnvDigitalExtensionDays,
	"otlp":                         EnvOTLPEnabled,
	"otlp-endpoint":                EnvOTLPEndpoint,
	"migrate":                      EnvMigrate,
}

// applyEnv sets every flag that was not passed explicitly from its environment variable, if present.
func applyEnv(fs *flag.FlagSet, getenv func(string) string) error {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var err error

	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || explicit[f.Name] {
			return
		}

		value := getenv(envByFlag[f.Name])
		if value == "" {
			return
		}

		if setErr := fs.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, envByFlag[f.Name], value, setErr)
		}
	})

	return err
}

func (c Config) validate() error {
	if c.Postgres.DSN == "" {
		return errors.Join(ErrInvalidConfig, ErrMissingDSN)
	}

	switch c.Postgres.Adapter {
	case AdapterPGXPool, AdapterSQLDB, AdapterSQLX:
	default:
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, ErrUnsupportedAdapter, c.Postgres.Adapter)
	}

	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("%w: interval %s", ErrInvalidConfig, c.ReconcileInterval)
	}

	if _, err := circulation.NewBusinessClock(c.Timezone); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	if err := c.Settings.Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	return nil
}
