package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pattyshack/dwarfx86"
)

func newFunctionsCommand(opts *globalOptions) *cobra.Command {
	format := "text"
	bestEffort := false
	numWorkers := 0

	cmd := &cobra.Command{
		Use:   "functions PATH...",
		Short: "print every function and its argument locations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf(
					"invalid --format value (%s). expected text, json or yaml",
					format)
			}

			extract := dwarfx86.ExtractAll
			if bestEffort {
				extract = dwarfx86.ExtractAllBestEffort
			}

			start := time.Now()
			results, err := extract(cmd.Context(), args, numWorkers)
			if err != nil {
				return err
			}

			numFailed := 0
			for _, result := range results {
				if result.Err != nil {
					numFailed++
					opts.logger.Warn(
						"extraction failed",
						"path", result.Path,
						"error", result.Err)
				}

				for _, skipped := range result.Skipped {
					opts.logger.Info(
						"function skipped",
						"path", result.Path,
						"error", skipped)
				}

				opts.logger.Debug(
					"extracted",
					"path", result.Path,
					"functions", len(result.Functions))
			}

			opts.logger.Debug(
				"extraction done",
				"files", len(results),
				"failed", numFailed,
				"elapsed", time.Since(start))

			if format == "text" {
				writeText(cmd.OutOrStdout(), results)
			} else {
				err = writeDocuments(cmd.OutOrStdout(), format, results)
				if err != nil {
					return err
				}
			}

			if numFailed > 0 {
				return fmt.Errorf(
					"failed to extract %d of %d files",
					numFailed,
					len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(
		&format,
		"format",
		"f",
		format,
		"output format: text, json or yaml")
	cmd.Flags().BoolVar(
		&bestEffort,
		"best-effort",
		false,
		"skip functions that fail to extract instead of failing the file")
	cmd.Flags().IntVarP(
		&numWorkers,
		"workers",
		"j",
		0,
		"maximum number of files processed concurrently (default GOMAXPROCS)")

	return cmd
}
