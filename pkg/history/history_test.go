package history_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/srcdeps/srcdeps-go/pkg/history"
	"github.com/srcdeps/srcdeps-go/pkg/history/historytest"
)

var (
	t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	recordLibBuilt = history.Record{
		GroupID:      "org.example",
		ArtifactID:   "lib-core",
		Version:      "1.0-SRC-revision-abc123",
		RepositoryID: "org.example.lib",
		Outcome:      history.Built,
		StartedAt:    t0,
		Duration:     90 * time.Second,
	}
	recordLibFailed = history.Record{
		GroupID:      "org.example",
		ArtifactID:   "lib-core",
		Version:      "1.0-SRC-branch-main",
		RepositoryID: "org.example.lib",
		Outcome:      history.Failed,
		StartedAt:    t0.Add(time.Hour),
		Duration:     3 * time.Second,
		Error:        "build failed with exit code 1",
	}
	recordToolUpToDate = history.Record{
		GroupID:      "org.example.tools",
		ArtifactID:   "tool",
		Version:      "2.0-SRC-tag-v2.0",
		RepositoryID: "org.example.catchall",
		Outcome:      history.UpToDate,
		StartedAt:    t0.Add(2 * time.Hour),
	}
)

func TestDB_SelectRecords(t *testing.T) {
	tests := []struct {
		name   string
		filter history.Filter
		want   []history.Record
	}{
		{
			name:   "all, most recent first",
			filter: history.Filter{},
			want:   []history.Record{recordToolUpToDate, recordLibFailed, recordLibBuilt},
		},
		{
			name:   "by artifact",
			filter: history.Filter{GroupID: "org.example", ArtifactID: "lib-core"},
			want:   []history.Record{recordLibFailed, recordLibBuilt},
		},
		{
			name:   "by outcome",
			filter: history.Filter{Outcome: history.Failed},
			want:   []history.Record{recordLibFailed},
		},
		{
			name:   "limit",
			filter: history.Filter{Limit: 1},
			want:   []history.Record{recordToolUpToDate},
		},
		{
			name:   "no match",
			filter: history.Filter{GroupID: "com.acme"},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbc := historytest.InitDB(t, []history.Record{
				recordLibBuilt,
				recordLibFailed,
				recordToolUpToDate,
			})

			got, err := dbc.SelectRecords(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDB_Metadata(t *testing.T) {
	clk := clocktesting.NewFakeClock(t0)
	dbc := historytest.InitDB(t, nil, history.WithClock(clk))

	meta, err := dbc.Metadata()
	require.NoError(t, err)
	assert.Equal(t, history.Metadata{Version: 1, CreatedAt: t0, UpdatedAt: t0}, meta)

	clk.Step(time.Minute)
	require.NoError(t, dbc.Record(recordLibBuilt))

	meta, err = dbc.Metadata()
	require.NoError(t, err)
	assert.Equal(t, t0, meta.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), meta.UpdatedAt)
}

func TestDB_Reopen(t *testing.T) {
	dir := t.TempDir()

	dbc, err := history.New(dir)
	require.NoError(t, err)
	require.NoError(t, dbc.Init())
	require.NoError(t, dbc.Record(recordLibBuilt))
	require.NoError(t, dbc.Close())

	dbc, err = history.New(dir)
	require.NoError(t, err)
	defer dbc.Close()
	require.NoError(t, dbc.Init())

	got, err := dbc.SelectRecords(history.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []history.Record{recordLibBuilt}, got)
}

func TestDB_UnsupportedSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(history.MetadataPath(dir), []byte(`{"Version":99}`), 0644))

	dbc, err := history.New(dir)
	require.NoError(t, err)
	defer dbc.Close()

	assert.ErrorContains(t, dbc.Init(), "history schema version 99 is not supported")
}

func TestDB_Prune(t *testing.T) {
	dbc := historytest.InitDB(t, []history.Record{
		recordLibBuilt,
		recordLibFailed,
		recordToolUpToDate,
	})

	deleted, err := dbc.Prune(t0.Add(90 * time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	got, err := dbc.SelectRecords(history.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []history.Record{recordToolUpToDate}, got)

	// the artifact row of lib-core was dropped and comes back with a new attempt
	require.NoError(t, dbc.Record(recordLibBuilt))
	got, err = dbc.SelectRecords(history.Filter{ArtifactID: "lib-core"})
	require.NoError(t, err)
	assert.Equal(t, []history.Record{recordLibBuilt}, got)

	deleted, err = dbc.Prune(t0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestMetadataClient_Update(t *testing.T) {
	dir := t.TempDir()
	client := history.NewMetadataClient(dir)

	want := history.Metadata{Version: 1, CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)}
	require.NoError(t, client.Update(history.Metadata{Version: 1, CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, client.Update(want))

	got, err := client.Get()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "metadata.json", entries[0].Name())
}
