package build

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/xerrors"
)

// LocalRepoProperty points a nested Maven or Gradle build at a local repository.
const LocalRepoProperty = "maven.repo.local"

const localRepoArgPrefix = "-D" + LocalRepoProperty + "="

// EnhanceBuildArguments appends `-Dmaven.repo.local=<localRepo>` to args unless
// an argument already sets it, in which case args is returned unchanged.
// args itself is never modified.
func EnhanceBuildArguments(args []string, localRepo string) []string {
	for _, arg := range args {
		if strings.HasPrefix(arg, localRepoArgPrefix) {
			slog.Debug("Forwarding the configured local repository to the nested build", slog.String("arg", arg))
			return args
		}
	}

	arg := localRepoArgPrefix + localRepo
	slog.Debug("Forwarding the outer local repository to the nested build", slog.String("arg", arg))

	result := make([]string, 0, len(args)+1)
	result = append(result, args...)
	return append(result, arg)
}

// ForwardedProperties selects the properties whose names match one of the
// glob patterns, e.g. `srcdeps.*`.
func ForwardedProperties(patterns []string, props map[string]string) (map[string]string, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, xerrors.Errorf("invalid forward property pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}

	result := make(map[string]string)
	for name, value := range props {
		for _, g := range globs {
			if g.Match(name) {
				result[name] = value
				break
			}
		}
	}
	return result, nil
}

// propertyArgs renders properties as sorted `-Dname=value` arguments.
func propertyArgs(props map[string]string) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		args = append(args, "-D"+name+"="+props[name])
	}
	return args
}
