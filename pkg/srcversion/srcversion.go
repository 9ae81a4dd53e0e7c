// Package srcversion recognizes version strings that request a build from a
// source revision, e.g. `1.0-SRC-revision-e63539236a94e8f6c2d720f8bda0323d1ce4db0f`.
package srcversion

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Marker separates the base version from the revision selector.
const Marker = "-SRC-"

// SelectorKind tells how the selector value addresses a revision.
type SelectorKind string

const (
	Revision SelectorKind = "revision"
	Branch   SelectorKind = "branch"
	Tag      SelectorKind = "tag"
)

var kinds = []SelectorKind{Revision, Branch, Tag}

// SrcVersion is the parsed form of `<baseVersion>-SRC-<kind>-<value>`.
// The zero value is not valid; use Parse.
type SrcVersion struct {
	base  string
	kind  SelectorKind
	value string
}

// ParseError is returned when a version string does not follow the source version grammar.
type ParseError struct {
	Version string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid source version %q: %s", e.Version, e.Reason)
}

// IsSrcVersion reports whether version follows the source version grammar.
func IsSrcVersion(version string) bool {
	_, err := Parse(version)
	return err == nil
}

// Parse parses version. The first occurrence of the marker splits the base
// version from the selector, so selector values may contain dashes.
func Parse(version string) (SrcVersion, error) {
	i := strings.Index(version, Marker)
	if i < 0 {
		return SrcVersion{}, &ParseError{Version: version, Reason: fmt.Sprintf("missing %q marker", Marker)}
	}
	base := version[:i]
	if base == "" {
		return SrcVersion{}, &ParseError{Version: version, Reason: "empty base version"}
	}

	kindStr, value, ok := strings.Cut(version[i+len(Marker):], "-")
	if !ok {
		return SrcVersion{}, &ParseError{Version: version, Reason: "missing selector value"}
	}
	kind := SelectorKind(kindStr)
	if !kind.valid() {
		return SrcVersion{}, &ParseError{Version: version, Reason: fmt.Sprintf("unknown selector kind %q, expected one of %v", kindStr, kinds)}
	}
	if value == "" {
		return SrcVersion{}, &ParseError{Version: version, Reason: "empty selector value"}
	}
	// the version names a directory under the build root
	if !filepath.IsLocal(version) || slices.Contains(strings.FieldsFunc(version, isSeparator), "..") {
		return SrcVersion{}, &ParseError{Version: version, Reason: "not usable as a directory name"}
	}

	return SrcVersion{base: base, kind: kind, value: value}, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

func (k SelectorKind) valid() bool {
	for _, kk := range kinds {
		if k == kk {
			return true
		}
	}
	return false
}

// BaseVersion returns the release-like prefix before the marker.
func (v SrcVersion) BaseVersion() string { return v.base }

// Kind returns the selector kind.
func (v SrcVersion) Kind() SelectorKind { return v.kind }

// Value returns the literal commit hash, branch name or tag name.
func (v SrcVersion) Value() string { return v.value }

// IsZero reports whether v was not produced by Parse.
func (v SrcVersion) IsZero() bool { return v.kind == "" }

// String renders the version string v was parsed from.
func (v SrcVersion) String() string {
	return v.base + Marker + string(v.kind) + "-" + v.value
}
