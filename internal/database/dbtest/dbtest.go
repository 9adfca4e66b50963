// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"catering/internal/config"
	"catering/internal/database"
)

var seq atomic.Int64

// Open returns a migrated store backed by a private in-memory SQLite database
func Open(t testing.TB) *database.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	store, err := database.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}
