package config

import "fmt"

// NoMatchingRepositoryError means no configured repository selects the requested artifact.
type NoMatchingRepositoryError struct {
	GroupID    string
	ArtifactID string
	Version    string
}

func (e *NoMatchingRepositoryError) Error() string {
	return fmt.Sprintf("no source repository configured for artifact [%s:%s:%s]", e.GroupID, e.ArtifactID, e.Version)
}

// FindRepository returns the first repository, in declaration order, whose
// selectors contain the given triple.
func FindRepository(repositories []*Repository, groupID, artifactID, version string) (*Repository, error) {
	for _, r := range repositories {
		if r.Contains(groupID, artifactID, version) {
			return r, nil
		}
	}
	return nil, &NoMatchingRepositoryError{GroupID: groupID, ArtifactID: artifactID, Version: version}
}
