package sloth

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds everything the app needs, loaded from defaults overlaid with
// SLOTH_* environment variables. Lifetimes are kept as duration expressions
// so they read naturally in env files.
type Config struct {
	ServerAddress string `koanf:"server_address"`
	SigningSecret string `koanf:"signing_secret"`
	CookieDomain  string `koanf:"cookie_domain"`
	StoreDSN      string `koanf:"store_dsn"`

	EmailAPI          string `koanf:"email_api"`
	EmailEventLogin   string `koanf:"email_event_login"`
	EmailSubjectLogin string `koanf:"email_subject_login"`
	EmailTextLogin    string `koanf:"email_text_login"`

	SMTPHost          string `koanf:"smtp_host"`
	SMTPPort          string `koanf:"smtp_port"`
	FromEmail         string `koanf:"from_email"`
	FromEmailPassword string `koanf:"from_email_password"`

	SessionTTLExpression   string `koanf:"session_ttl"`
	RefreshTTLExpression   string `koanf:"refresh_ttl"`
	LoginCodeTTLExpression string `koanf:"login_code_ttl"`
}

func (c Config) GetServerAddress() string { return c.ServerAddress }
func (c Config) GetSigningSecret() string { return c.SigningSecret }
func (c Config) GetCookieDomain() string  { return c.CookieDomain }
func (c Config) GetStoreDSN() string      { return c.StoreDSN }

func (c Config) GetEmailAPI() string          { return c.EmailAPI }
func (c Config) GetEmailEventLogin() string   { return c.EmailEventLogin }
func (c Config) GetEmailSubjectLogin() string { return c.EmailSubjectLogin }
func (c Config) GetEmailTextLogin() string    { return c.EmailTextLogin }

func (c Config) GetSMTPHost() string          { return c.SMTPHost }
func (c Config) GetSMTPPort() string          { return c.SMTPPort }
func (c Config) GetFromEmail() string         { return c.FromEmail }
func (c Config) GetFromEmailPassword() string { return c.FromEmailPassword }

func (c Config) GetSessionTTL() time.Duration {
	return mustParseDuration(c.SessionTTLExpression)
}

func (c Config) GetRefreshTTL() time.Duration {
	return mustParseDuration(c.RefreshTTLExpression)
}

func (c Config) GetLoginCodeTTL() time.Duration {
	return mustParseDuration(c.LoginCodeTTLExpression)
}

func mustParseDuration(expression string) time.Duration {
	dur, err := time.ParseDuration(expression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", expression),
		)
	}
	return dur
}

// Validate checks the fields the app cannot run without and that the
// duration expressions will parse.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServerAddress, validation.Required),
		validation.Field(&c.SigningSecret, validation.Required),
		validation.Field(&c.StoreDSN, validation.Required),
		validation.Field(&c.SessionTTLExpression, validation.Required, validation.By(durationExpression)),
		validation.Field(&c.RefreshTTLExpression, validation.Required, validation.By(durationExpression)),
		validation.Field(&c.LoginCodeTTLExpression, validation.Required, validation.By(durationExpression)),
	)
}

func durationExpression(value any) error {
	expr, _ := value.(string)
	if _, err := time.ParseDuration(expr); err != nil {
		return fmt.Errorf("must be a duration expression")
	}
	return nil
}

const envPrefix = "SLOTH_"

func defaultConfig() map[string]any {
	return map[string]any{
		"server_address":      ":8572",
		"cookie_domain":       "",
		"store_dsn":           "file:sloth.db?cache=shared",
		"email_api":           "http://localhost:8571/api/email/send",
		"email_event_login":   EventLoginCode,
		"email_subject_login": "Your login code",
		"email_text_login":    "Enter this code to log in: ",
		"smtp_host":           "smtp.gmail.com",
		"smtp_port":           "465",
		"session_ttl":         "1h",
		"refresh_ttl":         "3h",
		"login_code_ttl":      "15m",
	}
}

// LoadConfig resolves the configuration from built-in defaults overlaid with
// SLOTH_* environment variables. SLOTH_SIGNING_SECRET maps to
// signing_secret, and so on for the rest of the flat key set.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfig(), "."), nil); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load config defaults")
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load config environment")
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}

	return cfg, nil
}
