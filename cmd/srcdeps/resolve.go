package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/build"
	"github.com/srcdeps/srcdeps-go/pkg/builddir"
	"github.com/srcdeps/srcdeps-go/pkg/config"
	"github.com/srcdeps/srcdeps-go/pkg/history"
	"github.com/srcdeps/srcdeps-go/pkg/localrepo"
	"github.com/srcdeps/srcdeps-go/pkg/srcdeps"
	"github.com/srcdeps/srcdeps-go/pkg/types"
)

type resolveOptions struct {
	*globalOptions
	file        string
	projectRoot string
	parallel    int
}

func newResolveCommand(global *globalOptions) *cobra.Command {
	opts := &resolveOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "resolve [groupId:artifactId:version[:type]...]",
		Short: "Build the source dependencies that are missing from the local repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read coordinates from a file, one per line")
	cmd.Flags().StringVar(&opts.projectRoot, "project-root", "", "root directory of the project being resolved (default the directory of --config)")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 4, "maximum number of concurrent source builds")
	return cmd
}

func (o *resolveOptions) run(cmd *cobra.Command, args []string) error {
	coords, err := o.coordinates(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return xerrors.Errorf("config error: %w", err)
	}
	props, err := o.sessionProperties()
	if err != nil {
		return err
	}
	repo, err := o.localRepository()
	if err != nil {
		return err
	}

	projectRoot := o.projectRoot
	if projectRoot == "" {
		if projectRoot, err = filepath.Abs(filepath.Dir(o.configPath)); err != nil {
			return xerrors.Errorf("project root error: %w", err)
		}
	}

	hist, err := history.New(o.historyDirectory(repo))
	if err != nil {
		return xerrors.Errorf("history db error: %w", err)
	}
	defer hist.Close()
	if err = hist.Init(); err != nil {
		return xerrors.Errorf("history db init error: %w", err)
	}

	service, err := srcdeps.NewService(srcdeps.Options{
		Config:               cfg,
		LocalRepo:            repo,
		BuildDirs:            builddir.NewManager(o.buildRootDir(repo), builddir.Option{}),
		Builder:              build.NewShellBuilder(build.GitCheckout{}),
		DependentProjectRoot: projectRoot,
		Properties:           props,
		History:              hist,
	})
	if err != nil {
		return err
	}

	sources := srcdeps.SourceDependencies(coords)
	bar := pb.New(len(sources)).SetWriter(cmd.ErrOrStderr()).Start()
	defer bar.Finish()

	interceptor := srcdeps.NewInterceptor(service)
	interceptor.OnDone = func(types.Coordinate, error) {
		bar.Increment()
	}
	if err = interceptor.ResolveAll(cmd.Context(), sources, o.parallel); err != nil {
		return xerrors.Errorf("resolve error: %w", err)
	}

	if cfg.Skip {
		return nil
	}
	missing := lo.Filter(sources, func(c types.Coordinate, _ int) bool {
		return !localrepo.Exists(repo.Resolve(c))
	})
	for _, c := range missing {
		slog.Error("Artifact not found", slog.String("artifact", c.String()), slog.String("path", repo.Resolve(c)))
	}
	if len(missing) > 0 {
		return xerrors.Errorf("%d of %d source dependencies could not be resolved", len(missing), len(sources))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d source dependencies resolved\n", len(sources))
	return nil
}

func (o *resolveOptions) coordinates(args []string) ([]types.Coordinate, error) {
	lines := args
	if o.file != "" {
		fromFile, err := readLines(o.file)
		if err != nil {
			return nil, err
		}
		lines = append(lines, fromFile...)
	}
	if len(lines) == 0 {
		return nil, xerrors.New("no coordinates given")
	}

	coords := make([]types.Coordinate, 0, len(lines))
	for _, line := range lines {
		c, err := types.ParseCoordinate(line)
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
	}
	return coords, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err = s.Err(); err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", path, err)
	}
	return lines, nil
}
