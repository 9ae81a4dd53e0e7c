package build

import (
	"context"
	"slices"
	"time"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
)

// Builder builds a source tree and installs its artifacts into the local repository.
type Builder interface {
	Build(ctx context.Context, req Request) error
}

// Request describes a single build attempt. It is constructed fresh for every
// attempt; use NewRequest so that the slices and maps are not shared with the caller.
type Request struct {
	// DependentProjectRootDirectory is the project whose resolution triggered the build.
	DependentProjectRootDirectory string
	// ProjectRootDirectory is the locked working directory of the build.
	ProjectRootDirectory string

	ScmURLs    []string
	SrcVersion srcversion.SrcVersion

	BuildArguments             []string
	BuildCommand               []string
	AddDefaultBuildArguments   bool
	SkipTests                  bool
	Verbosity                  string
	VersionsMavenPluginVersion string
	ForwardProperties          map[string]string

	Timeout     time.Duration
	IORedirects IORedirects
}

// NewRequest returns a copy of r that owns its slices and maps.
func NewRequest(r Request) Request {
	r.ScmURLs = slices.Clone(r.ScmURLs)
	r.BuildArguments = slices.Clone(r.BuildArguments)
	r.BuildCommand = slices.Clone(r.BuildCommand)
	if r.ForwardProperties != nil {
		props := make(map[string]string, len(r.ForwardProperties))
		for k, v := range r.ForwardProperties {
			props[k] = v
		}
		r.ForwardProperties = props
	}
	return r
}
