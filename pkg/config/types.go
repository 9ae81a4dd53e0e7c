package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultBuildTimeout               = 64 * time.Minute
	DefaultVerbosity                  = "warn"
	DefaultVersionsMavenPluginVersion = "2.16.2"

	// IO redirect URIs understood by the build package.
	Inherit = "inherit"
)

// Configuration is the resolved configuration of one resolution session.
// It is read-only once loaded.
type Configuration struct {
	Skip              bool          `yaml:"skip,omitempty"`
	ForwardProperties []string      `yaml:"forwardProperties,omitempty"`
	Repositories      []*Repository `yaml:"repositories"`
}

// Repository is a source repository able to build the artifacts its selectors match.
type Repository struct {
	ID        string   `yaml:"id"`
	Selectors []string `yaml:"selectors"`
	Excludes  []string `yaml:"excludes,omitempty"`
	URLs      []string `yaml:"urls"`

	BuildArguments             []string      `yaml:"buildArguments,omitempty"`
	BuildTimeout               time.Duration `yaml:"buildTimeout,omitempty"`
	SkipTests                  *bool         `yaml:"skipTests,omitempty"`
	AddDefaultBuildArguments   *bool         `yaml:"addDefaultBuildArguments,omitempty"`
	Verbosity                  string        `yaml:"verbosity,omitempty"`
	BuildCommand               string        `yaml:"buildCommand,omitempty"`
	VersionsMavenPluginVersion string        `yaml:"versionsMavenPluginVersion,omitempty"`
	IO                         BuilderIO     `yaml:"io,omitempty"`

	once   sync.Once
	gavSet GavSet
	gavErr error
}

// BuilderIO holds the redirect URIs of the nested build's standard streams.
type BuilderIO struct {
	Stdin  string `yaml:"stdin,omitempty"`
	Stdout string `yaml:"stdout,omitempty"`
	Stderr string `yaml:"stderr,omitempty"`
}

// IDAsPath turns `org.example.lib` into `org/example/lib`.
func (r *Repository) IDAsPath() string {
	return filepath.Join(strings.Split(r.ID, ".")...)
}

func (r *Repository) IsSkipTests() bool {
	return lo.FromPtrOr(r.SkipTests, true)
}

func (r *Repository) IsAddDefaultBuildArguments() bool {
	return lo.FromPtrOr(r.AddDefaultBuildArguments, true)
}

// Contains reports whether the repository is responsible for the given triple.
func (r *Repository) Contains(groupID, artifactID, version string) bool {
	set, err := r.compiled()
	if err != nil {
		return false
	}
	return set.Contains(groupID, artifactID, version)
}

func (r *Repository) compiled() (GavSet, error) {
	r.once.Do(func() {
		r.gavSet, r.gavErr = NewGavSet(r.Selectors, r.Excludes)
	})
	return r.gavSet, r.gavErr
}

func (r *Repository) applyDefaults() {
	if r.BuildTimeout <= 0 {
		r.BuildTimeout = DefaultBuildTimeout
	}
	r.Verbosity = lo.Ternary(r.Verbosity == "", DefaultVerbosity, r.Verbosity)
	if r.VersionsMavenPluginVersion == "" {
		r.VersionsMavenPluginVersion = DefaultVersionsMavenPluginVersion
	}
	r.IO.Stdin = lo.Ternary(r.IO.Stdin == "", Inherit, r.IO.Stdin)
	r.IO.Stdout = lo.Ternary(r.IO.Stdout == "", Inherit, r.IO.Stdout)
	r.IO.Stderr = lo.Ternary(r.IO.Stderr == "", Inherit, r.IO.Stderr)
}

// ApplyDefaults fills the unset repository fields. Load calls it.
func (c *Configuration) ApplyDefaults() {
	for _, r := range c.Repositories {
		r.applyDefaults()
	}
}
