package commands

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/bridgeport/pkg/query"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Mode    string
	Explain bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [envelope]",
		Short: "Check a query envelope without running it",
		Long: `Check a query envelope against the batch or subscription grammar.

The envelope may be raw JSON or its base64 encoding. When no argument is
given it is read from standard input.`,
		Example: `  # Validate a base64 envelope taken from a URL
  bridgeport validate eyJ2IjozLCJxIjp7ImZpbmQiOnt9fX0 --mode subscription

  # Validate raw JSON from a file and show the store operation
  bridgeport validate --explain < query.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "batch", "Grammar to validate against (batch|subscription)")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "Print the store operation the query translates to")
	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"batch", "subscription"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	cc := NewCommandContext(cmd)

	mode, err := parseMode(opts.Mode)
	if err != nil {
		return err
	}

	var input []byte
	switch {
	case len(args) > 0:
		input = []byte(args[0])
	case !isTerminal(cmd.InOrStdin()):
		if input, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	default:
		return fmt.Errorf("no envelope given: pass it as an argument or on standard input")
	}

	env, err := decodeEnvelope(input)
	if err != nil {
		return err
	}

	q, err := query.New(env, mode, query.WithReservedPrefix(cc.Cfg.Query.ReservedPrefix))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "valid %s query\n", mode)
	if !opts.Explain {
		return nil
	}

	explained, err := bson.MarshalExtJSONIndent(explain(q), false, false, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render query: %w", err)
	}
	_, _ = fmt.Fprintln(out, string(explained))
	return nil
}

func parseMode(s string) (query.Mode, error) {
	switch strings.ToLower(s) {
	case "batch", "":
		return query.ModeBatch, nil
	case "subscription", "sub":
		return query.ModeSubscription, nil
	default:
		return 0, fmt.Errorf("invalid mode %q (want batch or subscription)", s)
	}
}

// decodeEnvelope accepts raw JSON or base64.
func decodeEnvelope(input []byte) (bson.D, error) {
	input = bytes.TrimSpace(input)
	if bytes.HasPrefix(input, []byte("{")) {
		return query.DecodeJSON(input)
	}
	return query.Decode(string(input))
}

// explain describes the store operation of q as a document.
func explain(q *query.Query) bson.D {
	if q.Mode() == query.ModeSubscription {
		return bson.D{
			{Key: "operation", Value: "watch"},
			{Key: "pipeline", Value: q.SubscriptionPipeline()},
		}
	}

	p := q.Plan()
	if p.Aggregate {
		return bson.D{
			{Key: "operation", Value: "aggregate"},
			{Key: "collection", Value: p.Collection},
			{Key: "pipeline", Value: p.Pipeline},
		}
	}

	d := bson.D{
		{Key: "operation", Value: "find"},
		{Key: "collection", Value: p.Collection},
		{Key: "filter", Value: p.Filter},
	}
	if p.Sort != nil {
		d = append(d, bson.E{Key: "sort", Value: p.Sort})
	}
	if p.Project != nil {
		d = append(d, bson.E{Key: "project", Value: p.Project})
	}
	if p.Skip != 0 {
		d = append(d, bson.E{Key: "skip", Value: p.Skip})
	}
	if p.Limit != 0 {
		d = append(d, bson.E{Key: "limit", Value: p.Limit})
	}
	return d
}
