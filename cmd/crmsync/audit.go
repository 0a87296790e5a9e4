package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/core"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect or purge the audit log",
	}
	cmd.AddCommand(newAuditListCmd(), newAuditPurgeCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var (
		q      core.AuditQuery
		action string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if q.Entity != "" {
				if _, err := lookupEntity(q.Entity); err != nil {
					return err
				}
			}
			q.Action = core.AuditAction(action)

			service, closeStore, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := service.AuditLog(cmd.Context(), q)
			if err != nil {
				return withCode(exitStore, err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTION\tSEVERITY\tENTITY\tFILE\tLINE\tROWS\tREASON")
			for _, e := range entries {
				line := "-"
				if e.Line > 0 {
					line = fmt.Sprint(e.Line)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					e.CreatedAt.UTC().Format(time.RFC3339),
					e.Action, e.Severity, e.Entity,
					dash(e.FileName), line, e.RowsAffected, dash(e.Reason),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&q.Entity, "entity", "", "Only entries for this entity")
	cmd.Flags().StringVar(&action, "action", "", "Only entries with this action (import, export, import_cancelled, permission_denied)")
	cmd.Flags().IntVar(&q.Limit, "limit", core.DefaultAuditLimit, "Maximum entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func newAuditPurgeCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than --days",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return withCode(exitUsage, fmt.Errorf("--days must be positive"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			service, closeStore, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := service.PurgeAudit(cmd.Context(), days)
			if err != nil {
				return withCode(exitStore, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d audit entries older than %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "Retention window in days")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
