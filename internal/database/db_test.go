package database

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := Options{User: "pasal", Pass: "p@ss:word", Host: "db", Port: "3306", Name: "pasal"}.DSN()

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "pasal", cfg.User)
	assert.Equal(t, "p@ss:word", cfg.Passwd)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "pasal", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "UTC", cfg.Loc.String())
}

func TestSchemaHasUniqueKeys(t *testing.T) {
	all := strings.Join(schema, "\n")
	assert.Contains(t, all, "UNIQUE KEY uq_users_email (email)")
	assert.Contains(t, all, "UNIQUE KEY uq_stores_subdomain (subdomain)")
}
