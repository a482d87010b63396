package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Session   SessionConfig
	Payment   PaymentConfig
	Admin     AdminSeedConfig
	KeepAlive KeepAliveConfig
}

type AppConfig struct {
	Name     string `env:"APP_NAME" envDefault:"storefront"`
	Port     string `env:"APP_PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// PublicURL is used to build provider return URLs when the client sends none.
	PublicURL string `env:"APP_PUBLIC_URL" envDefault:"http://localhost:8080"`
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type PostgresConfig struct {
	Host            string        `env:"DB_HOST,required"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER,required"`
	Password        string        `env:"DB_PASSWORD,required"`
	DBName          string        `env:"DB_NAME,required"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	RunMigrations   bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
}

// DSN returns the connection string in key/value form, accepted by both pgx and lib/pq.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(c.Host), dsnValue(c.Port), dsnValue(c.User), dsnValue(c.Password), dsnValue(c.DBName), dsnValue(c.SSLMode))
}

// URL returns the connection string in URL form with the given scheme.
// Credentials and database name are escaped.
func (c PostgresConfig) URL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// dsnValue quotes a key/value DSN value when it is empty or contains
// characters the parser would split on.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type SessionConfig struct {
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"storefront_session"`
	TTL        time.Duration `env:"SESSION_TTL" envDefault:"168h"`
}

type PaymentConfig struct {
	MercadoPagoBaseURL     string        `env:"MERCADOPAGO_BASE_URL" envDefault:"https://api.mercadopago.com"`
	MercadoPagoAccessToken string        `env:"MERCADOPAGO_ACCESS_TOKEN"`
	MercadoPagoPublicKey   string        `env:"MERCADOPAGO_PUBLIC_KEY"`
	Timeout                time.Duration `env:"PAYMENT_PROVIDER_TIMEOUT" envDefault:"10s"`
	Currency               string        `env:"PAYMENT_CURRENCY" envDefault:"USD"`
}

type AdminSeedConfig struct {
	Username string `env:"ADMIN_USER"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

func (c AdminSeedConfig) Enabled() bool {
	return c.Username != "" && c.Email != "" && c.Password != ""
}

type KeepAliveConfig struct {
	Interval time.Duration `env:"DB_KEEPALIVE_INTERVAL" envDefault:"4m"`
}

// NewConfig reads an optional .env file and then parses the process environment.
func NewConfig() (*Config, error) {
	return Load(".env")
}

func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from env: %w", err)
	}

	return cfg, nil
}
