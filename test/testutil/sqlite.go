package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TempSQLitePath returns a path for a throwaway SQLite database file and a
// cleanup function that removes it.
func TempSQLitePath(t *testing.T) (string, func()) {
	tmpDir, err := os.MkdirTemp("", "memvault_sqlite_test")
	require.NoError(t, err)

	return filepath.Join(tmpDir, "test.db"), func() {
		os.RemoveAll(tmpDir)
	}
}
