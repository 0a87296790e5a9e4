package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/core"
)

func newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List importable entities and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tNATURAL KEY\tCHILD\tCOLUMNS")
			for _, s := range core.All() {
				info := s.Info()
				child := info.Child
				if child == "" {
					child = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					info.Entity,
					strings.Join(info.NaturalKey, "+"),
					child,
					strings.Join(info.Columns, ","),
				)
			}
			return tw.Flush()
		},
	}
}
