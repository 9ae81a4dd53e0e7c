package build_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srcdeps/srcdeps-go/pkg/build"
)

func TestIORedirects_Validate(t *testing.T) {
	tests := []struct {
		name    string
		io      build.IORedirects
		wantErr string
	}{
		{
			name: "defaults",
			io:   build.IORedirects{},
		},
		{
			name: "all supported",
			io: build.IORedirects{
				Stdin:  "read:/tmp/in.txt",
				Stdout: "append:/tmp/out.log",
				Stderr: "err2out",
			},
		},
		{
			name: "discard",
			io: build.IORedirects{
				Stdin:  "discard",
				Stdout: "discard",
				Stderr: "write:/tmp/err.log",
			},
		},
		{
			name:    "stdin cannot be written",
			io:      build.IORedirects{Stdin: "write:/tmp/in.txt"},
			wantErr: `stdin: unsupported redirect "write:/tmp/in.txt"`,
		},
		{
			name:    "stdout cannot be redirected to itself",
			io:      build.IORedirects{Stdout: "err2out"},
			wantErr: `stdout: unsupported redirect "err2out"`,
		},
		{
			name:    "empty path",
			io:      build.IORedirects{Stderr: "append:"},
			wantErr: `stderr: empty path in redirect "append:"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.io.Validate()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
