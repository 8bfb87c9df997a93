package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitbill/internal/calculator"
	"github.com/mmynk/splitbill/internal/models"
)

// SplitOptions holds flags for the split command.
type SplitOptions struct {
	*RootOptions
	Total     float64
	SplitType string
}

// NewSplitCommand creates the split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SplitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "split <participant[=input]>...",
		Short: "Compute how an expense is split",
		Long: `Compute the amount each participant owes for an expense, without storing anything.

Inputs are percentages for --type Percentage and amounts for --type "By Amount";
they are ignored for Equally.

Example:
  splitbill split --total 100 alice bob carol
  splitbill split --total 80 --type Percentage alice=25 bob=75`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(opts, args, cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Total, "total", 0, "expense total (required)")
	cmd.Flags().StringVar(&opts.SplitType, "type", string(models.SplitEqually), `split type (Equally|Percentage|"By Amount")`)
	_ = cmd.MarkFlagRequired("total")

	return cmd
}

func runSplit(opts *SplitOptions, args []string, cmd *cobra.Command) error {
	splitType := models.SplitType(opts.SplitType)
	if !splitType.Valid() {
		return WrapExitError(ExitCommandError, "invalid flags", fmt.Errorf("unknown split type %q", opts.SplitType))
	}

	participants := make([]models.Participant, len(args))
	var inputs []string
	for i, arg := range args {
		id, input, hasInput := strings.Cut(arg, "=")
		participants[i] = models.Participant{ID: id}
		if hasInput {
			inputs = append(inputs, input)
		}
	}
	if splitType == models.SplitEqually {
		inputs = nil
	}

	details, err := calculator.ComputeAllocations(opts.Total, participants, splitType, inputs)
	if err != nil {
		return WrapExitError(ExitFailure, "split failed", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), details)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, d := range details {
		fmt.Fprintf(tw, "%s\t%s\n", d.ParticipantID, strconv.FormatFloat(d.Amount, 'f', 2, 64))
	}
	fmt.Fprintf(tw, "total\t%s\n", calculator.SumAmounts(details).StringFixed(2))
	return tw.Flush()
}
