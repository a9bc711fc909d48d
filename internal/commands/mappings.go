package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-extractor/internal/logger"
)

func newMappingsCommand(configPath *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect the learned merchant dictionary",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show merchant dictionary size and confidence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)
			ctx := logger.WithContext(cmd.Context(), log)

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.mappings.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("total merchants: %d\n", stats.TotalMerchants)
			fmt.Printf("high confidence: %d\n", stats.HighConfidence)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <raw-merchant>",
		Short: "Look up the learned mapping for a raw merchant string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)
			ctx := logger.WithContext(cmd.Context(), log)

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			mapping, err := a.mappings.GetMapping(ctx, args[0])
			if err != nil {
				return err
			}
			if mapping == nil {
				fmt.Println("no mapping found")
				return nil
			}
			fmt.Printf("%s -> %s (%s, confidence %.2f)\n",
				mapping.RawName, mapping.NormalizedName, mapping.Category, mapping.Confidence)
			return nil
		},
	})

	return cmd
}
