package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/goclaw/willing/pkg/willing"
)

type simulateOptions struct {
	score     float64
	elapsed   float64
	draw      float64
	mentioned bool
	emoji     bool
	interest  float64
	group     string
	asJSON    bool
}

type simulateOutput struct {
	Tuning   willing.Tuning   `json:"tuning"`
	Stimulus willing.Stimulus `json:"stimulus"`
	Elapsed  float64          `json:"elapsed_seconds"`
	Draw     float64          `json:"draw"`
	Result   willing.Result   `json:"result"`
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Score one stimulus against the configured tuning without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			stim := willing.Stimulus{
				IsMentioned:  opts.mentioned,
				IsEmoji:      opts.emoji,
				InterestRate: opts.interest,
				GroupID:      opts.group,
			}
			if err := stim.Validate(); err != nil {
				return err
			}
			if opts.draw < 0 || opts.draw >= 1 {
				return fmt.Errorf("draw must be in [0, 1) (got %v)", opts.draw)
			}

			tuning := cfg.Willing.ToTuning()
			res := willing.Compute(willing.Input{
				Score:       opts.score,
				LastReplyAt: 0,
				Now:         opts.elapsed,
				Stimulus:    stim,
			}, tuning, opts.draw)

			out := simulateOutput{
				Tuning:   tuning,
				Stimulus: stim,
				Elapsed:  opts.elapsed,
				Draw:     opts.draw,
				Result:   res,
			}
			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printSimulation(cmd.OutOrStdout(), out, tuning.IsDownFrequency(stim.GroupID))
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.score, "score", 0, "current willingness score of the conversation")
	f.Float64Var(&opts.elapsed, "elapsed", 60, "seconds since the last reply")
	f.Float64Var(&opts.draw, "draw", 0.5, "uniform draw in [0, 1) compared against the probability")
	f.BoolVar(&opts.mentioned, "mentioned", false, "the agent was mentioned")
	f.BoolVar(&opts.emoji, "emoji", false, "the message is emoji only")
	f.Float64Var(&opts.interest, "interest", 0, "interest rate of the message")
	f.StringVar(&opts.group, "group", "", "group the message was posted in")
	f.BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printSimulation(w io.Writer, out simulateOutput, throttled bool) error {
	tr := out.Result.Trace
	_, err := fmt.Fprintf(w,
		"after mention:   %.4f\n"+
			"after emoji:     %.4f\n"+
			"after interest:  %.4f\n"+
			"after amplifier: %.4f\n"+
			"rate limit:      %.4f (throttled=%t)\n"+
			"after limit:     %.4f\n"+
			"score:           %.4f\n"+
			"probability:     %.4f\n"+
			"will reply:      %t\n",
		tr.AfterMention, tr.AfterEmoji, tr.AfterInterest, tr.AfterAmplify,
		out.Result.RateLimitFactor, throttled, tr.AfterLimit,
		out.Result.Score, out.Result.Probability, out.Result.WillReply,
	)
	return err
}
