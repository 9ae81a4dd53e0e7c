package build

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
)

// Tool is a build tool the ShellBuilder knows how to drive.
type Tool string

const (
	Maven  Tool = "maven"
	Gradle Tool = "gradle"
)

const waitDelay = 10 * time.Second

// Checkout fetches the sources of a version into a directory.
type Checkout interface {
	Checkout(ctx context.Context, dir string, urls []string, v srcversion.SrcVersion) error
}

// ShellBuilder runs Maven or Gradle as a child process in the build directory.
type ShellBuilder struct {
	// SCM populates the build directory before building. Nil leaves the
	// directory as it is.
	SCM Checkout
}

func NewShellBuilder(scm Checkout) *ShellBuilder {
	return &ShellBuilder{SCM: scm}
}

func (b *ShellBuilder) Build(ctx context.Context, req Request) error {
	dir := req.ProjectRootDirectory
	logger := slog.With(slog.String("dir", dir), slog.String("version", req.SrcVersion.String()))

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if b.SCM != nil {
		logger.Info("Checking out sources", slog.Any("urls", req.ScmURLs))
		if err := b.SCM.Checkout(ctx, dir, req.ScmURLs, req.SrcVersion); err != nil {
			return &BuildError{
				Dir:     dir,
				Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
				Err:     xerrors.Errorf("checkout error: %w", err),
			}
		}
	}

	commands, err := Commands(req)
	if err != nil {
		return &BuildError{Dir: dir, Err: err}
	}

	streams, err := req.IORedirects.open()
	if err != nil {
		return &BuildError{Dir: dir, Err: xerrors.Errorf("io redirect error: %w", err)}
	}
	defer func() {
		if cerr := streams.Close(); cerr != nil {
			logger.Warn("Failed to close build output", slog.Any("error", cerr))
		}
	}()

	for _, argv := range commands {
		if err = run(ctx, dir, argv, streams); err != nil {
			return err
		}
	}
	logger.Info("Nested build finished")
	return nil
}

func run(ctx context.Context, dir string, argv []string, s *streams) error {
	command := shellquote.Join(argv...)
	slog.Info("Running nested build", slog.String("dir", dir), slog.String("command", command))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err == nil {
		return nil
	}

	berr := &BuildError{Dir: dir, Command: command, Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		berr.Timeout = true
		berr.Err = ctx.Err()
		return berr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		berr.ExitCode = exitErr.ExitCode()
	}
	return berr
}

// DetectTool inspects the project root for Maven or Gradle build files.
func DetectTool(dir string) (Tool, bool) {
	switch {
	case exists(dir, "mvnw"), exists(dir, "pom.xml"):
		return Maven, true
	case exists(dir, "gradlew"), exists(dir, "build.gradle"), exists(dir, "build.gradle.kts"):
		return Gradle, true
	}
	return "", false
}

// Commands returns the command lines that build req, in order.
func Commands(req Request) ([][]string, error) {
	props := propertyArgs(req.ForwardProperties)

	if len(req.BuildCommand) > 0 {
		return [][]string{concat(req.BuildCommand, req.BuildArguments, props)}, nil
	}

	tool, ok := DetectTool(req.ProjectRootDirectory)
	if !ok {
		return nil, xerrors.Errorf("no Maven or Gradle build found in %s", req.ProjectRootDirectory)
	}

	switch tool {
	case Maven:
		return mavenCommands(req, props), nil
	default:
		return gradleCommands(req, props), nil
	}
}

func mavenCommands(req Request, props []string) [][]string {
	exe := executable(req.ProjectRootDirectory, "mvnw", "mvn")
	verbosity := mavenVerbosity(req.Verbosity)
	var skipTests []string
	if req.SkipTests {
		skipTests = []string{"-DskipTests"}
	}

	if !req.AddDefaultBuildArguments {
		return [][]string{concat([]string{exe}, verbosity, skipTests, req.BuildArguments, props)}
	}

	setVersion := []string{
		exe,
		"org.codehaus.mojo:versions-maven-plugin:" + req.VersionsMavenPluginVersion + ":set",
		"-DnewVersion=" + req.SrcVersion.String(),
		"-DgenerateBackupPoms=false",
	}
	install := []string{exe, "clean", "install"}
	return [][]string{
		concat(setVersion, verbosity, req.BuildArguments),
		concat(install, verbosity, skipTests, req.BuildArguments, props),
	}
}

func gradleCommands(req Request, props []string) [][]string {
	exe := executable(req.ProjectRootDirectory, "gradlew", "gradle")
	verbosity := gradleVerbosity(req.Verbosity)
	var skipTests []string
	if req.SkipTests {
		skipTests = []string{"-x", "test"}
	}

	base := []string{exe}
	if req.AddDefaultBuildArguments {
		base = append(base, "clean", "publishToMavenLocal", "-Pversion="+req.SrcVersion.String())
	}
	return [][]string{concat(base, verbosity, skipTests, req.BuildArguments, props)}
}

func mavenVerbosity(v string) []string {
	switch v {
	case "error", "warn":
		return []string{"-q"}
	case "debug":
		return []string{"-X"}
	}
	return nil
}

func gradleVerbosity(v string) []string {
	switch v {
	case "error":
		return []string{"-q"}
	case "warn":
		return []string{"-w"}
	case "info":
		return []string{"-i"}
	case "debug":
		return []string{"-d"}
	}
	return nil
}

// executable prefers the project's wrapper script over the tool on PATH.
func executable(dir, wrapper, tool string) string {
	if exists(dir, wrapper) {
		return filepath.Join(dir, wrapper)
	}
	return tool
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func concat(parts ...[]string) []string {
	return lo.Flatten(parts)
}
