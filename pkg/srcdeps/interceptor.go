package srcdeps

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
	"github.com/srcdeps/srcdeps-go/pkg/types"
)

const defaultParallelism = 4

// Interceptor is the hook a resolution pass calls for every dependency.
type Interceptor struct {
	service *Service

	// OnDone is called after each source dependency has been handled.
	OnDone func(c types.Coordinate, err error)
}

func NewInterceptor(service *Service) *Interceptor {
	return &Interceptor{service: service}
}

// Intercept builds c if its version is a source version. Other versions pass
// through untouched.
func (i *Interceptor) Intercept(ctx context.Context, c types.Coordinate) error {
	if !srcversion.IsSrcVersion(c.Version) {
		return nil
	}
	return i.service.BuildIfNecessary(ctx, c.GroupID, c.ArtifactID, c.Version)
}

// SourceDependencies returns the distinct source version coordinates of coords, in order.
func SourceDependencies(coords []types.Coordinate) []types.Coordinate {
	sources := lo.Filter(coords, func(c types.Coordinate, _ int) bool {
		return srcversion.IsSrcVersion(c.Version)
	})
	return lo.UniqBy(sources, func(c types.Coordinate) string {
		return c.GAV()
	})
}

// ResolveAll intercepts coords concurrently, at most parallelism at a time.
// The first fatal error cancels the remaining work and is returned.
func (i *Interceptor) ResolveAll(ctx context.Context, coords []types.Coordinate, parallelism int) error {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	sources := SourceDependencies(coords)
	slog.Info("Resolving source dependencies", slog.Int("count", len(sources)), slog.Int("parallelism", parallelism))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for _, c := range sources {
		eg.Go(func() error {
			err := i.Intercept(ctx, c)
			if i.OnDone != nil {
				i.OnDone(c, err)
			}
			if err != nil {
				return xerrors.Errorf("%s: %w", c.GAV(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}
