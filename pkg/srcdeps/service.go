// Package srcdeps builds source dependencies on demand while a project's
// dependencies are being resolved.
package srcdeps

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	"github.com/srcdeps/srcdeps-go/pkg/build"
	"github.com/srcdeps/srcdeps-go/pkg/builddir"
	"github.com/srcdeps/srcdeps-go/pkg/config"
	"github.com/srcdeps/srcdeps-go/pkg/history"
	"github.com/srcdeps/srcdeps-go/pkg/localrepo"
	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
	"github.com/srcdeps/srcdeps-go/pkg/types"
)

// Recorder stores the outcome of build attempts. *history.DB implements it.
type Recorder interface {
	Record(r history.Record) error
}

type Options struct {
	Config    *config.Configuration
	LocalRepo localrepo.Repository
	BuildDirs *builddir.Manager
	Builder   build.Builder

	// DependentProjectRoot is the project whose dependencies are being resolved.
	DependentProjectRoot string
	// Properties are the session properties; the ones matching
	// Config.ForwardProperties are passed on to nested builds.
	Properties map[string]string

	// History is optional.
	History Recorder
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Service is the per-session build orchestrator. It is safe for concurrent use.
type Service struct {
	cfg         *config.Configuration
	localRepo   localrepo.Repository
	buildDirs   *builddir.Manager
	builder     build.Builder
	projectRoot string
	forwarded   map[string]string
	history     Recorder
	clock       clock.Clock
	logger      *slog.Logger

	sf        singleflight.Group
	flightsMu sync.Mutex
	flights   map[string]*flight
}

// flight is the context a shared build runs under. It is cancelled once every
// caller waiting for the build has gone away.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type flightResult struct {
	// cancelled is set when the build ended with its flight context done.
	cancelled bool
}

func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		opts.Config = &config.Configuration{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BuildDirs == nil {
		return nil, xerrors.New("build directory manager is required")
	}
	if opts.Builder == nil {
		return nil, xerrors.New("builder is required")
	}

	forwarded, err := build.ForwardedProperties(opts.Config.ForwardProperties, opts.Properties)
	if err != nil {
		return nil, xerrors.Errorf("forward properties error: %w", err)
	}

	return &Service{
		cfg:         opts.Config,
		localRepo:   opts.LocalRepo,
		buildDirs:   opts.BuildDirs,
		builder:     opts.Builder,
		projectRoot: opts.DependentProjectRoot,
		forwarded:   forwarded,
		history:     opts.History,
		clock:       opts.Clock,
		logger:      opts.Logger.With(slog.String("component", "srcdeps")),
		flights:     make(map[string]*flight),
	}, nil
}

// BuildIfNecessary makes sure the artifact of a source version is present in
// the local repository, building it when it is not.
//
// Only the errors that prevent identifying what to build are returned:
// *config.NoMatchingRepositoryError and *srcversion.ParseError, plus the
// context error when ctx is done first. Lock and build failures are logged and
// leave the artifact absent.
//
// Identical concurrent calls share one build. The shared build keeps running
// while at least one caller still waits for it.
func (s *Service) BuildIfNecessary(ctx context.Context, groupID, artifactID, version string) error {
	logger := s.logger.With(
		slog.String("groupId", groupID),
		slog.String("artifactId", artifactID),
		slog.String("version", version),
	)
	if s.cfg.Skip {
		logger.Debug("Source dependencies are skipped")
		return nil
	}

	artifact := s.localRepo.Resolve(types.NewCoordinate(groupID, artifactID, version))
	key := strings.Join([]string{groupID, artifactID, version}, ":")
	for {
		if localrepo.Exists(artifact) {
			logger.Debug("Artifact found in the local repository", slog.String("path", artifact))
			return nil
		}

		f := s.join(ctx, key)
		ch := s.sf.DoChan(key, func() (any, error) {
			err := s.build(f.ctx, logger, groupID, artifactID, version, artifact)
			return flightResult{cancelled: f.ctx.Err() != nil}, err
		})

		select {
		case res := <-ch:
			s.leave(key, f)
			if res.Shared {
				logger.Debug("Joined an ongoing build")
			}
			if res.Err != nil {
				return res.Err
			}
			// the build was abandoned by the callers that started it
			if r, _ := res.Val.(flightResult); r.cancelled && ctx.Err() == nil {
				logger.Debug("Shared build was cancelled, retrying")
				continue
			}
			return nil
		case <-ctx.Done():
			s.leave(key, f)
			return ctx.Err()
		}
	}
}

// join registers the caller as a waiter of the flight for key, starting a new
// flight when none is running.
func (s *Service) join(ctx context.Context, key string) *flight {
	s.flightsMu.Lock()
	defer s.flightsMu.Unlock()

	f, ok := s.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	return f
}

func (s *Service) leave(key string, f *flight) {
	s.flightsMu.Lock()
	defer s.flightsMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
}

func (s *Service) build(ctx context.Context, logger *slog.Logger, groupID, artifactID, version, artifact string) error {
	repo, err := config.FindRepository(s.cfg.Repositories, groupID, artifactID, version)
	if err != nil {
		return err
	}
	sv, err := srcversion.Parse(version)
	if err != nil {
		return err
	}

	logger = logger.With(slog.String("repository", repo.ID))
	rec := history.Record{
		GroupID:      groupID,
		ArtifactID:   artifactID,
		Version:      version,
		RepositoryID: repo.ID,
		BuildDir:     s.buildDirs.Dir(repo.IDAsPath(), sv),
		StartedAt:    s.clock.Now().UTC(),
	}

	lock, err := s.buildDirs.OpenBuildDirectory(ctx, repo.IDAsPath(), sv)
	if err != nil {
		logger.Error("Unable to lock the build directory", slog.Any("error", err))
		s.record(logger, rec, history.Failed, err)
		return nil
	}
	defer func() {
		if cerr := lock.Close(); cerr != nil {
			logger.Error("Unable to release the build directory", slog.String("path", lock.Path()), slog.Any("error", cerr))
		}
	}()

	if localrepo.Exists(artifact) {
		logger.Info("Artifact was built while waiting for the build directory", slog.String("path", artifact))
		s.record(logger, rec, history.UpToDate, nil)
		return nil
	}

	req, err := s.request(repo, sv, lock.Path())
	if err != nil {
		logger.Error("Unable to prepare the build", slog.Any("error", err))
		s.record(logger, rec, history.Failed, err)
		return nil
	}

	logger.Info("Building source dependency", slog.String("dir", lock.Path()))
	if err = s.builder.Build(ctx, req); err != nil {
		logger.Error("Source dependency build failed", slog.Any("error", err))
		s.record(logger, rec, history.Failed, err)
		return nil
	}

	if !localrepo.Exists(artifact) {
		logger.Error("Build succeeded but the artifact is missing from the local repository", slog.String("path", artifact))
	}
	logger.Info("Source dependency built", slog.Duration("duration", s.clock.Since(rec.StartedAt)))
	s.record(logger, rec, history.Built, nil)
	return nil
}

func (s *Service) request(repo *config.Repository, sv srcversion.SrcVersion, dir string) (build.Request, error) {
	var command []string
	if repo.BuildCommand != "" {
		words, err := shellquote.Split(repo.BuildCommand)
		if err != nil {
			return build.Request{}, xerrors.Errorf("invalid build command %q: %w", repo.BuildCommand, err)
		}
		command = words
	}

	redirects := build.IORedirects{
		Stdin:  repo.IO.Stdin,
		Stdout: repo.IO.Stdout,
		Stderr: repo.IO.Stderr,
	}
	if err := redirects.Validate(); err != nil {
		return build.Request{}, err
	}

	return build.NewRequest(build.Request{
		DependentProjectRootDirectory: s.projectRoot,
		ProjectRootDirectory:          dir,
		ScmURLs:                       repo.URLs,
		SrcVersion:                    sv,
		BuildArguments:                build.EnhanceBuildArguments(repo.BuildArguments, s.localRepo.Root()),
		BuildCommand:                  command,
		AddDefaultBuildArguments:      repo.IsAddDefaultBuildArguments(),
		SkipTests:                     repo.IsSkipTests(),
		Verbosity:                     repo.Verbosity,
		VersionsMavenPluginVersion:    repo.VersionsMavenPluginVersion,
		ForwardProperties:             s.forwarded,
		Timeout:                       repo.BuildTimeout,
		IORedirects:                   redirects,
	}), nil
}

func (s *Service) record(logger *slog.Logger, rec history.Record, outcome history.Outcome, err error) {
	if s.history == nil {
		return
	}
	rec.Outcome = outcome
	rec.Duration = s.clock.Since(rec.StartedAt)
	if err != nil {
		rec.Error = err.Error()
	}
	if herr := s.history.Record(rec); herr != nil {
		logger.Warn("Unable to record build history", slog.Any("error", herr))
	}
}
