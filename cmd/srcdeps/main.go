package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/localrepo"
)

// Set via -ldflags.
var version = "dev"

type globalOptions struct {
	configPath string
	localRepo  string
	buildRoot  string
	historyDir string
	properties []string
	debug      bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "srcdeps",
		Short: "Build dependencies from source on demand",
		Long: `srcdeps builds dependencies whose version has the form
<baseVersion>-SRC-<revision|branch|tag>-<value> from their source repositories
and installs the results into the local Maven repository.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogger(opts.debug)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "srcdeps.yaml", "path to the configuration file")
	flags.StringVar(&opts.localRepo, "local-repo", "", "local Maven repository (default $M2_REPO or ~/.m2/repository)")
	flags.StringVar(&opts.buildRoot, "build-root", "", "directory of the source build checkouts (default <local-repo>/../srcdeps)")
	flags.StringVar(&opts.historyDir, "history-db", "", "directory of the build history database (default <build-root>)")
	flags.StringArrayVarP(&opts.properties, "define", "D", nil, "session property name=value, may be forwarded to nested builds")
	flags.BoolVar(&opts.debug, "debug", false, "debug mode")

	cmd.AddCommand(
		newResolveCommand(opts),
		newParseCommand(),
		newHistoryCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func (o *globalOptions) localRepository() (localrepo.Repository, error) {
	if o.localRepo != "" {
		return localrepo.New(o.localRepo), nil
	}
	return localrepo.Autodetect()
}

func (o *globalOptions) buildRootDir(repo localrepo.Repository) string {
	if o.buildRoot != "" {
		return o.buildRoot
	}
	return filepath.Join(filepath.Dir(repo.Root()), "srcdeps")
}

func (o *globalOptions) historyDirectory(repo localrepo.Repository) string {
	if o.historyDir != "" {
		return o.historyDir
	}
	return o.buildRootDir(repo)
}

func (o *globalOptions) sessionProperties() (map[string]string, error) {
	props := make(map[string]string, len(o.properties))
	for _, p := range o.properties {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			value = "true"
		}
		if name == "" {
			return nil, xerrors.Errorf("invalid property %q", p)
		}
		props[name] = value
	}
	return props, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "srcdeps %s\n", version)
		},
	}
}
