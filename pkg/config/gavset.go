package config

import (
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/xerrors"
)

// GavSet is a set of coordinates described by include and exclude patterns
// of the form `groupId[:artifactId[:version]]`. Each segment is a glob and
// missing segments match anything. Excludes win over includes.
type GavSet struct {
	includes []gavPattern
	excludes []gavPattern
}

type gavPattern struct {
	source   string
	group    glob.Glob
	artifact glob.Glob
	version  glob.Glob
}

func NewGavSet(includes, excludes []string) (GavSet, error) {
	var set GavSet
	for _, p := range includes {
		gp, err := compilePattern(p)
		if err != nil {
			return GavSet{}, err
		}
		set.includes = append(set.includes, gp)
	}
	for _, p := range excludes {
		gp, err := compilePattern(p)
		if err != nil {
			return GavSet{}, err
		}
		set.excludes = append(set.excludes, gp)
	}
	return set, nil
}

func compilePattern(p string) (gavPattern, error) {
	segments := strings.Split(strings.TrimSpace(p), ":")
	if len(segments) > 3 || segments[0] == "" {
		return gavPattern{}, xerrors.Errorf("invalid selector %q: expected groupId[:artifactId[:version]]", p)
	}
	for len(segments) < 3 {
		segments = append(segments, "*")
	}

	compiled := make([]glob.Glob, 3)
	for i, s := range segments {
		g, err := glob.Compile(s)
		if err != nil {
			return gavPattern{}, xerrors.Errorf("failed to compile selector %q: %w", p, err)
		}
		compiled[i] = g
	}
	return gavPattern{
		source:   p,
		group:    compiled[0],
		artifact: compiled[1],
		version:  compiled[2],
	}, nil
}

func (p gavPattern) match(groupID, artifactID, version string) bool {
	return p.group.Match(groupID) && p.artifact.Match(artifactID) && p.version.Match(version)
}

// Contains reports whether the triple is included and not excluded.
func (s GavSet) Contains(groupID, artifactID, version string) bool {
	for _, e := range s.excludes {
		if e.match(groupID, artifactID, version) {
			return false
		}
	}
	for _, i := range s.includes {
		if i.match(groupID, artifactID, version) {
			return true
		}
	}
	return false
}
