package config_test

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/storefront/internal/config"
)

func setRequiredDBEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "123456")
	t.Setenv("DB_NAME", "storefront")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredDBEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, "storefront_session", cfg.Session.CookieName)
	assert.Equal(t, 168*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 4*time.Minute, cfg.KeepAlive.Interval)
	assert.False(t, cfg.Admin.Enabled())
	assert.False(t, cfg.App.IsProduction())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_HOST", "")
	os.Unsetenv("DB_HOST")

	_, err := config.Load("")
	require.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	setRequiredDBEnv(t)
	t.Setenv("APP_PORT", "")
	os.Unsetenv("APP_PORT")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=9090\nADMIN_USER=rootadmin\nADMIN_EMAIL=root@example.com\nADMIN_PASSWORD=supersecret\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("APP_PORT")
		os.Unsetenv("ADMIN_USER")
		os.Unsetenv("ADMIN_EMAIL")
		os.Unsetenv("ADMIN_PASSWORD")
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.Admin.Enabled())
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	setRequiredDBEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := config.PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "shop", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=shop sslmode=disable", cfg.DSN())
	assert.Equal(t, "pgx5://u:p@db:5432/shop?sslmode=disable", cfg.URL("pgx5"))
}

func TestPostgresConfig_EscapesCredentials(t *testing.T) {
	cfg := config.PostgresConfig{Host: "db", Port: "5432", User: "shop user", Password: `p@ss/w:rd 'x'\`, DBName: "shop", SSLMode: "disable"}

	parsed, err := url.Parse(cfg.URL("pgx5"))
	require.NoError(t, err)
	assert.Equal(t, "shop user", parsed.User.Username())
	password, ok := parsed.User.Password()
	require.True(t, ok)
	assert.Equal(t, cfg.Password, password)
	assert.Equal(t, "db:5432", parsed.Host)
	assert.Equal(t, "/shop", parsed.Path)

	assert.Equal(t,
		`host=db port=5432 user='shop user' password='p@ss/w:rd \'x\'\\' dbname=shop sslmode=disable`,
		cfg.DSN())
}
