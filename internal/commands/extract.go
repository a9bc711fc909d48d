package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-extractor/internal/logger"
)

func newExtractCommand(configPath *string, verbose *bool) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <document>...",
		Short: "Extract, validate, and analyze transactions from statements",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)
			ctx := logger.WithContext(cmd.Context(), log)

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var failed int
			for _, ref := range args {
				doc, err := a.source.Load(ctx, ref)
				if err != nil {
					log.Error().Err(err).Str("ref", ref).Msg("failed to load document")
					failed++
					continue
				}

				result, err := a.pipeline.Run(ctx, doc)
				if err != nil {
					log.Error().Err(err).Str("ref", ref).Str("doc_id", doc.DocID).
						Msg("extraction failed")
					failed++
					continue
				}

				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					if err := enc.Encode(result); err != nil {
						return err
					}
					continue
				}

				fmt.Printf("%s: %d transactions via %s", doc.Filename, len(result.Transactions), result.Method)
				if result.Analysis != nil {
					fmt.Printf(", total spent $%.2f", result.Analysis.TotalSpent)
				}
				fmt.Println()
				for _, warning := range result.ValidationWarnings {
					fmt.Printf("  warning: %s\n", warning)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print full results as JSON")
	return cmd
}
