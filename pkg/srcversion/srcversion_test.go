package srcversion_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		wantBase  string
		wantKind  srcversion.SelectorKind
		wantValue string
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "revision",
			version:   "1.0-SRC-revision-e63539236a94e8f6c2d720f8bda0323d1ce4db0f",
			wantBase:  "1.0",
			wantKind:  srcversion.Revision,
			wantValue: "e63539236a94e8f6c2d720f8bda0323d1ce4db0f",
			assertErr: assert.NoError,
		},
		{
			name:      "branch with dashes",
			version:   "0.0.1-SRC-branch-feature-x-y",
			wantBase:  "0.0.1",
			wantKind:  srcversion.Branch,
			wantValue: "feature-x-y",
			assertErr: assert.NoError,
		},
		{
			name:      "tag with qualified base",
			version:   "2.3.0-beta-1-SRC-tag-v2.3.0",
			wantBase:  "2.3.0-beta-1",
			wantKind:  srcversion.Tag,
			wantValue: "v2.3.0",
			assertErr: assert.NoError,
		},
		{
			name:      "published version",
			version:   "1.0.0",
			assertErr: assert.Error,
		},
		{
			name:      "snapshot",
			version:   "1.0-SNAPSHOT",
			assertErr: assert.Error,
		},
		{
			name:      "empty base",
			version:   "-SRC-tag-v1",
			assertErr: assert.Error,
		},
		{
			name:      "unknown kind",
			version:   "1.0-SRC-commit-abc",
			assertErr: assert.Error,
		},
		{
			name:      "missing value",
			version:   "1.0-SRC-tag",
			assertErr: assert.Error,
		},
		{
			name:      "empty value",
			version:   "1.0-SRC-tag-",
			assertErr: assert.Error,
		},
		{
			name:      "branch with slashes",
			version:   "1.0-SRC-branch-feature/x",
			wantBase:  "1.0",
			wantKind:  srcversion.Branch,
			wantValue: "feature/x",
			assertErr: assert.NoError,
		},
		{
			name:      "value escaping the build root",
			version:   "1.0-SRC-branch-x/../../../../escaped",
			assertErr: assert.Error,
		},
		{
			name:      "parent segment inside the root",
			version:   "1.0-SRC-branch-x/../y",
			assertErr: assert.Error,
		},
		{
			name:      "absolute value",
			version:   "/1.0-SRC-tag-v1",
			assertErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := srcversion.Parse(tt.version)
			tt.assertErr(t, err)
			if err != nil {
				var perr *srcversion.ParseError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, tt.version, perr.Version)
				assert.True(t, got.IsZero())
				assert.False(t, srcversion.IsSrcVersion(tt.version))
				return
			}
			assert.True(t, srcversion.IsSrcVersion(tt.version))
			assert.Equal(t, tt.wantBase, got.BaseVersion())
			assert.Equal(t, tt.wantKind, got.Kind())
			assert.Equal(t, tt.wantValue, got.Value())
		})
	}
}

func TestSrcVersion_RoundTrip(t *testing.T) {
	versions := []string{
		"1.0-SRC-revision-e63539236a94e8f6c2d720f8bda0323d1ce4db0f",
		"0.0.1-SRC-branch-main",
		"0.0.1-SRC-branch-release-1.x",
		"5-SRC-tag-v5-final",
	}
	for _, v := range versions {
		t.Run(v, func(t *testing.T) {
			parsed, err := srcversion.Parse(v)
			require.NoError(t, err)
			assert.Equal(t, v, parsed.String())

			reparsed, err := srcversion.Parse(parsed.String())
			require.NoError(t, err)
			assert.Equal(t, parsed, reparsed)
		})
	}
}
