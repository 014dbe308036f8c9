package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker/rulestore"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/debugsvc"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/errcoll"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/version"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
	"github.com/getsentry/sentry-go"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	ConfPath             string `env:"CONFIG_PATH" envDefault:"./config.yaml"`
	FilterCachePath      string `env:"FILTER_CACHE_PATH" envDefault:"./filters/"`
	LogFormat            string `env:"LOG_FORMAT" envDefault:"text"`
	PublicSuffixListPath string `env:"PUBLIC_SUFFIX_LIST_PATH"`
	RuleStorePath        string `env:"RULE_STORE_PATH" envDefault:"./rulelists/"`
	SentryDSN            string `env:"SENTRY_DSN" envDefault:"stderr"`

	RuleStoreType rulestore.Type `env:"RULE_STORE_TYPE" envDefault:"dir"`

	ListenAddr net.IP `env:"LISTEN_ADDR" envDefault:"127.0.0.1"`

	MaxFileSize datasize.ByteSize `env:"MAX_FILE_SIZE" envDefault:"64MB"`

	ListenPort uint16 `env:"LISTEN_PORT" envDefault:"8181"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	LogTimestamp strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	errs := []error{
		validate.NotEmpty("CONFIG_PATH", envs.ConfPath),
		validate.NotEmpty("FILTER_CACHE_PATH", envs.FilterCachePath),
		validate.NotEmpty("RULE_STORE_PATH", envs.RuleStorePath),
		validate.Positive("MAX_FILE_SIZE", envs.MaxFileSize),
	}

	err = envs.RuleStoreType.Validate()
	if err != nil {
		errs = append(errs, fmt.Errorf("RULE_STORE_TYPE: %w", err))
	}

	if envs.ListenAddr == nil {
		errs = append(errs, fmt.Errorf("LISTEN_ADDR: %w", errors.ErrNoValue))
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	return errors.Join(errs...)
}

// buildErrColl builds and returns an error collector from environment.
func (envs *environment) buildErrColl(
	baseLogger *slog.Logger,
) (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, err
	}

	l := baseLogger.With(slogutil.KeyPrefix, "sentry_errcoll")

	return errcoll.NewSentryErrorCollector(cli, l), nil
}

// debugConf returns a debug HTTP service configuration from environment.  The
// query dependencies are set by the builder.
func (envs *environment) debugConf(baseLogger *slog.Logger) (conf *debugsvc.Config) {
	addr := netutil.JoinHostPort(envs.ListenAddr.String(), envs.ListenPort)

	return &debugsvc.Config{
		Logger:         baseLogger.With(slogutil.KeyPrefix, "debugsvc"),
		APIAddr:        addr,
		PprofAddr:      addr,
		PrometheusAddr: addr,
	}
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) == 1 {
		switch b[0] {
		case '0':
			*sb = false

			return nil
		case '1':
			*sb = true

			return nil
		default:
			// Go on and return an error.
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
}
