package mssql

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_SQLAuth(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "sql.example.com",
		"port":     float64(1434),
		"database": "sales",
		"user":     "sa",
		"password": "Secret!1",
		"ssl_mode": "require",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthSQL, cfg.AuthMethod)
	assert.Equal(t, 1434, cfg.Port)
	assert.Equal(t, "sa", cfg.Username)
	assert.Equal(t, "Secret!1", cfg.Password)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, DefaultConnectionTimeout(), cfg.ConnectionTimeout)
	assert.Equal(t, "sqlserver", cfg.DriverName())
}

func TestFromMap_EncryptOverridesSSLMode(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "h",
		"database": "d",
		"user":     "u",
		"ssl_mode": "require",
		"encrypt":  "false",
	})
	require.NoError(t, err)
	assert.False(t, cfg.Encrypt)
}

func TestFromMap_ServicePrincipal(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":          "srv.database.windows.net",
		"database":      "sales",
		"tenant_id":     "tenant",
		"client_id":     "client",
		"client_secret": "shh",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthServicePrincipal, cfg.AuthMethod)
	assert.Equal(t, "azuresql", cfg.DriverName())
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		errorMsg string
	}{
		{"missing host", map[string]any{"database": "d", "user": "u"}, "host is required"},
		{"missing database", map[string]any{"host": "h", "user": "u"}, "database is required"},
		{"no credentials", map[string]any{"host": "h", "database": "d"}, "could not auto-detect auth method"},
		{"unknown auth method", map[string]any{"host": "h", "database": "d", "auth_method": "kerberos"}, "invalid auth method: kerberos"},
		{"service principal without secret", map[string]any{"host": "h", "database": "d", "tenant_id": "t", "client_id": "c"}, "client_secret is required"},
		{"bad port", map[string]any{"host": "h", "database": "d", "user": "u", "port": 70000}, "invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfig_ConnString(t *testing.T) {
	t.Run("sql auth", func(t *testing.T) {
		cfg := &Config{
			Host: "db.internal", Port: 1433, Database: "sales",
			AuthMethod: AuthSQL, Username: "sa", Password: "p@ss word",
			TrustServerCertificate: true, ConnectionTimeout: 15,
		}

		u, err := url.Parse(cfg.ConnString())
		require.NoError(t, err)

		assert.Equal(t, "sqlserver", u.Scheme)
		assert.Equal(t, "db.internal:1433", u.Host)
		assert.Equal(t, "sa", u.User.Username())
		password, _ := u.User.Password()
		assert.Equal(t, "p@ss word", password)

		q := u.Query()
		assert.Equal(t, "sales", q.Get("database"))
		assert.Equal(t, "false", q.Get("encrypt"))
		assert.Equal(t, "true", q.Get("TrustServerCertificate"))
		assert.Equal(t, "15", q.Get("connection timeout"))
	})

	t.Run("service principal", func(t *testing.T) {
		cfg := &Config{
			Host: "srv.database.windows.net", Port: 1433, Database: "sales",
			AuthMethod: AuthServicePrincipal, TenantID: "tenant", ClientID: "client", ClientSecret: "shh",
			Encrypt: true,
		}

		u, err := url.Parse(cfg.ConnString())
		require.NoError(t, err)

		assert.Nil(t, u.User)
		q := u.Query()
		assert.Equal(t, "ActiveDirectoryServicePrincipal", q.Get("fedauth"))
		assert.Equal(t, "client@tenant", q.Get("user id"))
		assert.Equal(t, "shh", q.Get("password"))
		assert.Equal(t, "true", q.Get("encrypt"))
	})
}
