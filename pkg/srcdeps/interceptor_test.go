package srcdeps_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srcdeps/srcdeps-go/pkg/config"
	"github.com/srcdeps/srcdeps-go/pkg/srcdeps"
	"github.com/srcdeps/srcdeps-go/pkg/types"
)

func TestInterceptor_Intercept(t *testing.T) {
	tests := []struct {
		name      string
		coord     types.Coordinate
		wantCalls int32
	}{
		{
			name:      "source version",
			coord:     types.NewCoordinate(groupID, artifactID, srcVersion),
			wantCalls: 1,
		},
		{
			name:  "released version",
			coord: types.NewCoordinate(groupID, artifactID, "1.0"),
		},
		{
			name:  "marker without selector",
			coord: types.NewCoordinate(groupID, artifactID, "1.0-SRC-"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := &fakeBuilder{install: true}
			f := newFixture(t, libConfig(), builder)

			require.NoError(t, srcdeps.NewInterceptor(f.service).Intercept(context.Background(), tt.coord))
			assert.Equal(t, tt.wantCalls, builder.calls.Load())
		})
	}
}

func TestSourceDependencies(t *testing.T) {
	got := srcdeps.SourceDependencies([]types.Coordinate{
		types.NewCoordinate("org.example", "lib-core", "1.0-SRC-tag-v1"),
		types.NewCoordinate("org.example", "lib-core", "1.0"),
		{GroupID: "org.example", ArtifactID: "lib-core", Version: "1.0-SRC-tag-v1", Type: types.PomType},
		types.NewCoordinate("org.example", "lib-api", "1.0-SRC-tag-v1"),
	})
	assert.Equal(t, []types.Coordinate{
		types.NewCoordinate("org.example", "lib-core", "1.0-SRC-tag-v1"),
		types.NewCoordinate("org.example", "lib-api", "1.0-SRC-tag-v1"),
	}, got)
}

func TestInterceptor_ResolveAll(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		builder := &fakeBuilder{install: true}
		f := newFixture(t, libConfig(), builder)

		var (
			mu   sync.Mutex
			done []string
		)
		interceptor := srcdeps.NewInterceptor(f.service)
		interceptor.OnDone = func(c types.Coordinate, err error) {
			assert.NoError(t, err)
			mu.Lock()
			done = append(done, c.GAV())
			mu.Unlock()
		}

		err := interceptor.ResolveAll(context.Background(), []types.Coordinate{
			types.NewCoordinate(groupID, artifactID, "1.0-SRC-branch-main"),
			types.NewCoordinate(groupID, artifactID, "1.0-SRC-branch-main"),
			types.NewCoordinate(groupID, artifactID, "1.0-SRC-tag-v1.0"),
			types.NewCoordinate("com.acme", "other", "2.0"),
		}, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 2, builder.calls.Load())
		assert.ElementsMatch(t, []string{
			groupID + ":" + artifactID + ":1.0-SRC-branch-main",
			groupID + ":" + artifactID + ":1.0-SRC-tag-v1.0",
		}, done)
	})

	t.Run("configuration gap is fatal", func(t *testing.T) {
		builder := &fakeBuilder{install: true}
		f := newFixture(t, libConfig(), builder)

		err := srcdeps.NewInterceptor(f.service).ResolveAll(context.Background(), []types.Coordinate{
			types.NewCoordinate("com.acme", "other", srcVersion),
		}, 0)

		var nmr *config.NoMatchingRepositoryError
		require.True(t, errors.As(err, &nmr), err)
		assert.ErrorContains(t, err, "com.acme:other:"+srcVersion)
		assert.Zero(t, builder.calls.Load())
	})
}
