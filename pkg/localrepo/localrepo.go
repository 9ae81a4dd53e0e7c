package localrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/types"
)

// Repository is a local artifact repository in the Maven layout. It is only
// ever read here; nested builds write to it.
type Repository struct {
	root string
}

func New(root string) Repository {
	return Repository{root: filepath.Clean(root)}
}

// Autodetect returns the repository at $M2_REPO, or ~/.m2/repository.
func Autodetect() (Repository, error) {
	if dir := os.Getenv("M2_REPO"); dir != "" {
		return New(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Repository{}, xerrors.Errorf("unable to detect the local repository: %w", err)
	}
	return New(filepath.Join(home, ".m2", "repository")), nil
}

// Root returns the repository root directory.
func (r Repository) Root() string {
	return r.root
}

// ResolveGroup returns the directory of a groupId, e.g. `org/example` for `org.example`.
func (r Repository) ResolveGroup(groupID string) string {
	return filepath.Join(append([]string{r.root}, strings.Split(groupID, ".")...)...)
}

// Resolve maps a coordinate to its expected file. It performs no I/O.
// e.g. org.example:lib:1.0:jar => <root>/org/example/lib/1.0/lib-1.0.jar
func (r Repository) Resolve(c types.Coordinate) string {
	typ := c.Type
	if typ == "" {
		typ = types.JarType
	}
	fileName := fmt.Sprintf("%s-%s.%s", c.ArtifactID, c.Version, typ)
	return filepath.Join(r.ResolveGroup(c.GroupID), c.ArtifactID, c.Version, fileName)
}

// Exists reports whether path is present on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
