package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srcdeps/srcdeps-go/pkg/history"
	"github.com/srcdeps/srcdeps-go/pkg/history/historytest"
	"github.com/srcdeps/srcdeps-go/pkg/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		want      string
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "revision",
			version:   "1.0-SRC-revision-e63539236a94e8f6c2d720f8bda0323d1ce4db0f",
			want:      "base:     1.0\nselector: revision\nvalue:    e63539236a94e8f6c2d720f8bda0323d1ce4db0f\n",
			assertErr: assert.NoError,
		},
		{
			name:      "branch with dashes",
			version:   "2.1.0-SRC-branch-feature-x",
			want:      "base:     2.1.0\nselector: branch\nvalue:    feature-x\n",
			assertErr: assert.NoError,
		},
		{
			name:    "released version",
			version: "1.0",
			assertErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorContains(t, err, `invalid source version "1.0"`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, "parse", tt.version)
			if !tt.assertErr(t, err) || err != nil {
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionProperties(t *testing.T) {
	opts := &globalOptions{properties: []string{"srcdeps.mvn.verbosity=debug", "skipITs", "url=a=b"}}
	got, err := opts.sessionProperties()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"srcdeps.mvn.verbosity": "debug",
		"skipITs":               "true",
		"url":                   "a=b",
	}, got)

	opts = &globalOptions{properties: []string{"=x"}}
	_, err = opts.sessionProperties()
	assert.ErrorContains(t, err, `invalid property "=x"`)
}

func TestResolveOptions_Coordinates(t *testing.T) {
	file := filepath.Join(t.TempDir(), "deps.txt")
	require.NoError(t, os.WriteFile(file, []byte(`# source dependencies
org.example:lib-core:1.0-SRC-tag-v1

org.example:lib-api:1.0-SRC-tag-v1:pom
`), 0644))

	opts := &resolveOptions{globalOptions: &globalOptions{}, file: file}
	got, err := opts.coordinates([]string{"com.acme:tool:2.0"})
	require.NoError(t, err)
	assert.Equal(t, []types.Coordinate{
		types.NewCoordinate("com.acme", "tool", "2.0"),
		types.NewCoordinate("org.example", "lib-core", "1.0-SRC-tag-v1"),
		{GroupID: "org.example", ArtifactID: "lib-api", Version: "1.0-SRC-tag-v1", Type: types.PomType},
	}, got)

	_, err = (&resolveOptions{globalOptions: &globalOptions{}}).coordinates(nil)
	assert.ErrorContains(t, err, "no coordinates given")
}

func TestHistoryCommand(t *testing.T) {
	dbc := historytest.InitDB(t, []history.Record{
		{
			GroupID:      "org.example",
			ArtifactID:   "lib-core",
			Version:      "1.0-SRC-tag-v1",
			RepositoryID: "org.example.lib",
			Outcome:      history.Failed,
			StartedAt:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Duration:     3 * time.Second,
			Error:        "build failed with exit code 1",
		},
	})

	got, err := execute(t, "history", "--history-db", dbc.Dir(), "--local-repo", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, got, "org.example:lib-core")
	assert.Contains(t, got, "1.0-SRC-tag-v1")
	assert.Contains(t, got, "failed")
	assert.Contains(t, got, "3s")

	_, err = execute(t, "history", "--history-db", dbc.Dir(), "--outcome", "broken")
	assert.ErrorContains(t, err, `unknown outcome "broken"`)
}

func TestHistoryCommand_Prune(t *testing.T) {
	dbc := historytest.InitDB(t, []history.Record{
		{
			GroupID:      "org.example",
			ArtifactID:   "lib-core",
			Version:      "1.0-SRC-tag-v1",
			RepositoryID: "org.example.lib",
			Outcome:      history.Built,
			StartedAt:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			GroupID:      "org.example",
			ArtifactID:   "lib-core",
			Version:      "1.0-SRC-branch-main",
			RepositoryID: "org.example.lib",
			Outcome:      history.Built,
			StartedAt:    time.Now().UTC(),
		},
	})

	got, err := execute(t, "history", "--history-db", dbc.Dir(), "--local-repo", t.TempDir(), "--prune", "720h")
	require.NoError(t, err)
	assert.Equal(t, "1 build records pruned\n", got)

	records, err := dbc.SelectRecords(history.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1.0-SRC-branch-main", records[0].Version)
}

func TestVersionCommand(t *testing.T) {
	got, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "srcdeps dev\n", got)
}
