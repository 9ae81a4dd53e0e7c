package historytest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srcdeps/srcdeps-go/pkg/history"
)

func InitDB(t *testing.T, records []history.Record, opts ...history.Option) *history.DB {
	t.Helper()
	dbc, err := history.New(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbc.Close() })

	require.NoError(t, dbc.Init())

	if len(records) > 0 {
		require.NoError(t, dbc.InsertRecords(records))
	}
	return dbc
}
