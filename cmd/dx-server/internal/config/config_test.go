package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RMQ_USERNAME", "admin")
	t.Setenv("RMQ_PASSWORD", "secret")
	t.Setenv("DB_PASSWORD", "dbsecret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "dx_", cfg.Database.Prefix)
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, "/", cfg.Broker.VHost)
	assert.Equal(t, 10*time.Second, cfg.Broker.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Catalogue.Timeout)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 100, cfg.Sweep.PageSize)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("SWEEP_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Sweep.Interval)
	assert.False(t, cfg.Sweep.Enabled)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing broker credentials", func(t *testing.T) {
		setRequired(t)
		require.NoError(t, os.Unsetenv("RMQ_USERNAME"))
		require.NoError(t, os.Unsetenv("RMQ_PASSWORD"))

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("missing database password", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_PASSWORD", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("sqlite needs no password", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_PASSWORD", "")
		t.Setenv("DB_DRIVER", "sqlite3")

		_, err := Load()
		assert.NoError(t, err)
	})

	t.Run("non-positive page size", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SWEEP_PAGE_SIZE", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "mysql",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "dx", Password: "pw", Database: "dx"},
			want: "dx:pw@tcp(db:3306)/dx?parseTime=true",
		},
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "dx", Password: "pw", Database: "dx"},
			want: "host=db port=5432 user=dx password=pw dbname=dx sslmode=disable",
		},
		{
			name: "sqlite3",
			cfg:  DatabaseConfig{Driver: "sqlite3", Database: "/tmp/dx.db"},
			want: "/tmp/dx.db",
		},
		{
			name: "unknown",
			cfg:  DatabaseConfig{Driver: "oracle"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.GetDSN())
		})
	}
}

func TestUsage(t *testing.T) {
	usage := Usage()

	assert.Contains(t, usage, "RMQ_USERNAME")
	assert.Contains(t, usage, "SWEEP_INTERVAL")
}
