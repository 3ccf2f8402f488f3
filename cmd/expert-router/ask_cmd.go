package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alexchuang650730/aicore0624-sub006/internal/pipeline"
	"github.com/spf13/cobra"
)

func newAskCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <request>...",
		Short: "Answer one request and print the aggregated expert answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			defer a.close(ctx)

			answer, err := a.orchestrator.Process(ctx, strings.Join(args, " "))
			if answer == nil {
				return err
			}
			if werr := writeAnswer(cmd.OutOrStdout(), answer, asJSON); werr != nil {
				return werr
			}
			if errors.Is(err, pipeline.ErrAllExpertsFailed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

func writeAnswer(out io.Writer, answer *pipeline.FinalAnswer, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(out, answer.Text)
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"result":          answer.Text,
		"experts_used":    answer.ExpertIDs,
		"expert_count":    len(answer.ExpertIDs),
		"failed_experts":  answer.Failed,
		"path_taken":      answer.PathTaken,
		"processing_time": answer.Duration.Seconds(),
	})
}
