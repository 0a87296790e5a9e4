package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/store/memstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type importOptions struct {
	defaultOwner string
	batchSize    int
	dryRun       bool
	asJSON       bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <entity> <file.csv>",
		Short: "Reconcile a CSV file into the store",
		Long: `Import inserts new records, updates records whose id exists and skips rows
whose natural key already exists. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.defaultOwner != "" && !core.IsUUID(opts.defaultOwner) {
				return withCode(exitUsage, fmt.Errorf("invalid --default-owner: %q is not a uuid", opts.defaultOwner))
			}
			if opts.batchSize < 0 {
				return withCode(exitUsage, fmt.Errorf("--batch-size must be positive"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.defaultOwner, "default-owner", "", "Principal id for owners that cannot be resolved")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Rows per batch (default from IMPORT_BATCH_SIZE)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate against an empty in-memory store; the database is not touched")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func runImport(cmd *cobra.Command, entity, path string, opts importOptions) error {
	ctx := cmd.Context()
	if _, err := lookupEntity(entity); err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	fileName := "stdin"
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return withCode(exitUsage, err)
		}
		defer f.Close()
		in = f
		fileName = filepath.Base(path)
	}

	var service *core.Service
	if opts.dryRun {
		mem := memstore.New()
		s, err := core.NewService(mem, mem, nil)
		if err != nil {
			return err
		}
		service = s
	} else {
		s, closeStore, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		service = s
	}

	res, err := service.Import(ctx, entity, fileName, in, core.ImportOptions{
		DefaultOwner: opts.defaultOwner,
		BatchSize:    opts.batchSize,
	})
	if res != nil {
		if perr := printResult(cmd.OutOrStdout(), res, opts.asJSON); perr != nil {
			return perr
		}
	}

	var fatal *core.FatalInputError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &fatal), errors.Is(err, core.ErrMalformedInput):
		return withCode(exitValidation, errors.New(core.FormatUserError(err)))
	case errors.Is(err, core.ErrCancelled):
		return withCode(exitValidation, err)
	default:
		return withCode(exitStore, err)
	}
}

func printResult(w io.Writer, res *core.ImportResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Fatal != "" {
		fmt.Fprintf(w, "%s: rejected: %s\n", res.FileName, res.Fatal)
		return nil
	}

	fmt.Fprintf(w, "%s -> %s: %d rows in %s\n", res.FileName, res.Entity, res.TotalRows, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  inserted:   %d\n", res.SuccessCount)
	fmt.Fprintf(w, "  updated:    %d\n", res.UpdateCount)
	fmt.Fprintf(w, "  duplicates: %d\n", res.DuplicateCount)
	fmt.Fprintf(w, "  errors:     %d\n", res.ErrorCount)
	if res.Cancelled {
		fmt.Fprintf(w, "  cancelled after %d rows\n", res.Processed())
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  line %d: %s [%s]\n", e.Row, e.Message, e.Kind)
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "warnings:\n")
		for _, wn := range res.Warnings {
			fmt.Fprintf(w, "  line %d: %s\n", wn.Row, strings.TrimSpace(wn.Message))
		}
	}
	return nil
}
