package sqlstore_test

import (
	"path/filepath"
	"testing"

	"github.com/cloudhands/burst/pkg/store/sqlstore"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "burst.db")
	s, err := sqlstore.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustExec(t *testing.T, s *sqlstore.Store, query string, args ...any) int64 {
	t.Helper()
	id, err := sqlstore.ExecForTest(s, query, args...)
	require.NoError(t, err)
	return id
}
