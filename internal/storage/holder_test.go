package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelationalDSNDefaultsSSLModeWhenUnset(t *testing.T) {
	dsn := relationalDSN(RelationalConfig{
		Host: "db.internal", Port: 5432, Username: "svc", Password: "pw", Database: "social",
	})
	require.Equal(t, "postgres://svc:pw@db.internal:5432/social?sslmode=prefer", dsn)
}

func TestRelationalDSNHonorsExplicitSSLStrategy(t *testing.T) {
	dsn := relationalDSN(RelationalConfig{
		Host: "db.internal", Port: 5432, Username: "svc", Password: "pw", Database: "social",
		SSLStrategy: "verify-full",
	})
	require.Equal(t, "postgres://svc:pw@db.internal:5432/social?sslmode=verify-full", dsn)
}
