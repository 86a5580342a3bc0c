package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chatctx/internal/contextprofile"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		conversation string
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "List recent compaction events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func() error {
				if a.store == nil {
					return fmt.Errorf("event store unavailable at %s", a.cfg.EventStorePath)
				}
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				events, err := a.store.LoadCompactionEvents(ctx, conversation, limit)
				if err != nil {
					return fmt.Errorf("load compaction events: %w", err)
				}
				writeEvents(a.out, events)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "Only show events for this conversation key")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events")
	return cmd
}

func writeEvents(out io.Writer, events []contextprofile.CompactionEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "no compaction events recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCONVERSATION\tTIER\tMESSAGES\tMERGED\tTOKENS\tFINGERPRINT")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d→%d\t%d\t%d/%d\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Conversation,
			e.Tier,
			e.MessagesBefore, e.MessagesAfter,
			e.MessagesMerged,
			e.EstimatedTokens, e.TokenBudget,
			e.Fingerprint[:min(12, len(e.Fingerprint))],
		)
	}
	tw.Flush()
}
