package build

import "fmt"

// BuildError is returned when a nested build fails to launch, exits with a
// non-zero status or runs out of time.
type BuildError struct {
	Dir      string
	Command  string
	ExitCode int
	Timeout  bool
	Err      error
}

func (e *BuildError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("build in %s timed out: %s", e.Dir, e.Err)
	case e.ExitCode != 0:
		return fmt.Sprintf("build in %s failed with exit code %d: %s", e.Dir, e.ExitCode, e.Command)
	default:
		return fmt.Sprintf("build in %s failed: %s", e.Dir, e.Err)
	}
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
