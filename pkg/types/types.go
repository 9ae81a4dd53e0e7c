package types

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

const (
	// types of files
	JarType = "jar"
	PomType = "pom"
)

// Coordinate identifies a single artifact in a Maven layout repository.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Type       string
}

// NewCoordinate returns a Coordinate with the default jar type.
// Gradle style resolution hooks have no notion of type or classifier.
func NewCoordinate(groupID, artifactID, version string) Coordinate {
	return Coordinate{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Version:    version,
		Type:       JarType,
	}
}

// ParseCoordinate parses `groupId:artifactId:version[:type]`.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, xerrors.Errorf("invalid coordinate %q: expected groupId:artifactId:version[:type]", s)
	}
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, xerrors.Errorf("invalid coordinate %q: empty segment", s)
		}
	}

	c := NewCoordinate(parts[0], parts[1], parts[2])
	if len(parts) == 4 {
		c.Type = parts[3]
	}
	return c, nil
}

// GAV returns the `groupId:artifactId:version` triple used in log and error messages.
func (c Coordinate) GAV() string {
	return fmt.Sprintf("%s:%s:%s", c.GroupID, c.ArtifactID, c.Version)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", c.GroupID, c.ArtifactID, c.Version, c.Type)
}
