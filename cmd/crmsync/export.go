package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/core"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "Write every record of an entity as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := lookupEntity(args[0]); err != nil {
				return err
			}
			service, closeStore, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			file, err := service.Export(cmd.Context(), args[0])
			if err != nil {
				return withCode(exitStore, err)
			}
			if output == "" {
				output = file.FileName
			}
			if err := writeOutput(cmd.OutOrStdout(), output, file.Content); err != nil {
				return err
			}
			slog.Info("export written", "entity", args[0], "records", file.RecordCount, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file, "-" for stdout (default <entity>_export_<date>.csv)`)
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template <entity>",
		Short: "Write a header-only CSV for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := lookupEntity(args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, core.Template(schema))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", `Output file, "-" for stdout`)
	return cmd
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
