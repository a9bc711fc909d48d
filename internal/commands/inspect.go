package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-extractor/internal/extract"
	"github.com/dvloznov/statement-extractor/internal/logger"
)

func newInspectCommand(configPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <document>",
		Short: "Show detected identity and pattern readiness without extracting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)
			ctx := logger.WithContext(cmd.Context(), log)

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.source.Load(ctx, args[0])
			if err != nil {
				return err
			}

			identity := extract.BuildIdentity(doc.DocID, doc.Filename, doc.Pages,
				doc.FileSizeBytes, doc.HeaderLines, doc.Text)

			fmt.Printf("doc_id:          %s\n", identity.DocID)
			fmt.Printf("filename:        %s\n", identity.Filename)
			fmt.Printf("pages:           %d\n", identity.Pages)
			fmt.Printf("statement_type:  %s\n", identity.StatementType)
			if identity.Institution != "" {
				fmt.Printf("institution:     %s\n", identity.Institution)
			}
			if identity.AccountHolder != "" {
				fmt.Printf("account_holder:  %s\n", identity.AccountHolder)
			}
			if identity.AccountIdentifier != "" {
				fmt.Printf("account_id:      %s\n", identity.AccountIdentifier)
			}

			patterned := extract.PatternExtract(doc.Text, identity.StatementType)
			fmt.Printf("pattern_matches: %d (dropped %d)\n", len(patterned.Transactions), patterned.Dropped)
			if len(patterned.Transactions) == 0 {
				fmt.Println("extraction would fall back to the generative model")
			}
			return nil
		},
	}
}
