package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srcdeps/srcdeps-go/pkg/srcversion"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse VERSION",
		Short: "Check whether a version is a source version and show its parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := srcversion.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "base:     %s\n", v.BaseVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "selector: %s\n", v.Kind())
			fmt.Fprintf(cmd.OutOrStdout(), "value:    %s\n", v.Value())
			return nil
		},
	}
}
