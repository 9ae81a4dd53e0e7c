package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/srcdeps/srcdeps-go/pkg/history"
)

type historyOptions struct {
	*globalOptions
	groupID    string
	artifactID string
	outcome    string
	limit      int
	prune      time.Duration
}

func newHistoryCommand(global *globalOptions) *cobra.Command {
	opts := &historyOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past source build attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.prune > 0 {
				return opts.runPrune(cmd.OutOrStdout())
			}
			return opts.run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.groupID, "group", "", "only builds of this groupId")
	cmd.Flags().StringVar(&opts.artifactID, "artifact", "", "only builds of this artifactId")
	cmd.Flags().StringVar(&opts.outcome, "outcome", "", "only builds with this outcome (built, up-to-date, failed)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of builds to list, 0 for all")
	cmd.Flags().DurationVar(&opts.prune, "prune", 0, "delete the builds older than this age instead of listing, e.g. 720h")
	return cmd
}

func (o *historyOptions) run(w io.Writer) error {
	switch history.Outcome(o.outcome) {
	case "", history.Built, history.UpToDate, history.Failed:
	default:
		return xerrors.Errorf("unknown outcome %q", o.outcome)
	}

	hist, err := o.openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	records, err := hist.SelectRecords(history.Filter{
		GroupID:    o.groupID,
		ArtifactID: o.artifactID,
		Outcome:    history.Outcome(o.outcome),
		Limit:      o.limit,
	})
	if err != nil {
		return err
	}
	renderHistory(w, records)
	return nil
}

func (o *historyOptions) runPrune(w io.Writer) error {
	hist, err := o.openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	deleted, err := hist.Prune(time.Now().Add(-o.prune))
	if err != nil {
		return xerrors.Errorf("prune error: %w", err)
	}
	fmt.Fprintf(w, "%d build records pruned\n", deleted)
	return nil
}

func (o *historyOptions) openHistory() (*history.DB, error) {
	repo, err := o.localRepository()
	if err != nil {
		return nil, err
	}
	hist, err := history.New(o.historyDirectory(repo))
	if err != nil {
		return nil, xerrors.Errorf("history db error: %w", err)
	}
	if err = hist.Init(); err != nil {
		hist.Close()
		return nil, xerrors.Errorf("history db init error: %w", err)
	}
	return hist, nil
}

func renderHistory(w io.Writer, records []history.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Started", "Artifact", "Version", "Repository", "Outcome", "Duration", "Error"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.StartedAt.Local().Format(time.DateTime),
			r.GroupID + ":" + r.ArtifactID,
			r.Version,
			r.RepositoryID,
			string(r.Outcome),
			r.Duration.Round(time.Second).String(),
			r.Error,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, WidthMax: 60},
	})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
