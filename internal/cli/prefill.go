package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitbill/internal/prefill"
)

// NewPrefillCommand creates the prefill command.
func NewPrefillCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prefill <receipt-text-file|->",
		Short: "Suggest a description and total from receipt text",
		Long: `Read recognized receipt text, one receipt line per line, and print the detected
store name and total. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if args[0] == "-" {
				text, err = io.ReadAll(cmd.InOrStdin())
			} else {
				text, err = os.ReadFile(args[0])
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read receipt text", err)
			}

			suggestion, err := prefill.FromImage(cmd.Context(), prefill.TextExtractor{}, text)
			if err != nil {
				return WrapExitError(ExitFailure, "prefill failed", err)
			}

			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), suggestion)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "description: %s\ntotal: %s\n", orDash(suggestion.Description), orDash(suggestion.TotalAmount))
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
