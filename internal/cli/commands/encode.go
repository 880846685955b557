package commands

import (
	"fmt"
	"io"
	"net/url"

	"github.com/leapstack-labs/bridgeport/pkg/query"
	"github.com/spf13/cobra"
)

// EncodeOptions holds options for the encode command.
type EncodeOptions struct {
	Example string
	Mode    string
	BaseURL string
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand() *cobra.Command {
	opts := &EncodeOptions{}

	cmd := &cobra.Command{
		Use:   "encode [envelope]",
		Short: "Encode a JSON query envelope for use in a URL",
		Long: `Validate a JSON query envelope and print its base64 encoding.

With --base-url the full batch or subscription URL is printed instead.`,
		Example: `  # Encode the default batch query
  bridgeport encode --example batch

  # Build a subscription URL
  bridgeport encode '{"v":3,"q":{"find":{}}}' --mode subscription --base-url http://localhost:3000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Example, "example", "", "Encode a built-in example (batch|subscription)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "batch", "Grammar to validate against (batch|subscription)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Print a full URL rooted at this address")

	return cmd
}

func runEncode(cmd *cobra.Command, args []string, opts *EncodeOptions) error {
	cc := NewCommandContext(cmd)

	mode, err := parseMode(opts.Mode)
	if err != nil {
		return err
	}

	var input []byte
	switch {
	case opts.Example != "":
		if len(args) > 0 {
			return fmt.Errorf("--example cannot be combined with an envelope argument")
		}
		if mode, err = parseMode(opts.Example); err != nil {
			return err
		}
		input = []byte(exampleEnvelope(mode))
	case len(args) > 0:
		input = []byte(args[0])
	case !isTerminal(cmd.InOrStdin()):
		if input, err = io.ReadAll(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	default:
		return fmt.Errorf("no envelope given: pass it as an argument, on standard input or with --example")
	}

	env, err := query.DecodeJSON(input)
	if err != nil {
		return err
	}
	if err := query.Validate(env, mode, query.WithReservedPrefix(cc.Cfg.Query.ReservedPrefix)); err != nil {
		return err
	}

	encoded, err := query.Encode(input)
	if err != nil {
		return err
	}

	if opts.BaseURL == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), encoded)
		return nil
	}

	link, err := queryURL(opts.BaseURL, cc.Cfg.Bridge.ID, mode, encoded)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), link)
	return nil
}

func exampleEnvelope(mode query.Mode) string {
	if mode == query.ModeSubscription {
		return query.DefaultSubscriptionEnvelope
	}
	return query.DefaultBatchEnvelope
}

// queryURL joins base, the optional bridge id, the route for mode and the
// encoded envelope.
func queryURL(base, bridgeID string, mode query.Mode, encoded string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	route := "q"
	if mode == query.ModeSubscription {
		route = "s"
	}

	elems := []string{route, encoded}
	if bridgeID != "" {
		elems = append([]string{bridgeID}, elems...)
	}
	return u.JoinPath(elems...).String(), nil
}
