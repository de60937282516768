package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/crestline-hoa/invoice-cli/internal/model"
	"github.com/crestline-hoa/invoice-cli/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the invoice processing queue",
}

// -- queue list --

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		association, _ := cmd.Flags().GetString("association")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.ListQueueEntries(ctx, store.QueueFilter{
			Status:        model.QueueStatus(status),
			AssociationID: association,
			Limit:         limit,
		})
		if err != nil {
			return eris.Wrap(err, "queue list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No queue entries found.")
			return nil
		}

		formatQueueList(os.Stdout, entries)
		return nil
	},
}

// -- queue show --

var queueShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show one queue entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entry, err := st.GetQueueEntry(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "queue show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

// -- queue stats --

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate queue statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entries, err := st.ListQueueEntries(ctx, store.QueueFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "queue stats")
		}

		formatQueueStats(os.Stdout, computeQueueStats(entries))
		return nil
	},
}

func init() {
	queueListCmd.Flags().String("status", "", "filter by status (processing, completed, failed)")
	queueListCmd.Flags().String("association", "", "filter by association ID")
	queueListCmd.Flags().Int("limit", 50, "max number of entries to display")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueShowCmd)
	queueCmd.AddCommand(queueStatsCmd)
	rootCmd.AddCommand(queueCmd)
}

// queueStats holds aggregate statistics computed from queue entries.
type queueStats struct {
	Total      int
	Processing int
	Completed  int
	Failed     int
	AvgDurSecs float64
}

func computeQueueStats(entries []model.QueueEntry) queueStats {
	var s queueStats
	s.Total = len(entries)

	var totalDur time.Duration
	var durCount int

	for _, e := range entries {
		switch e.Status {
		case model.QueueStatusProcessing:
			s.Processing++
		case model.QueueStatusCompleted:
			s.Completed++
			if e.CompletedAt != nil {
				totalDur += e.CompletedAt.Sub(e.StartedAt)
				durCount++
			}
		case model.QueueStatusFailed:
			s.Failed++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatQueueList writes a tabular list of queue entries to w.
func formatQueueList(out io.Writer, entries []model.QueueEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tASSOCIATION\tSTATUS\tSTARTED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----------\t------\t-------\t--------\t-----")

	for _, e := range entries {
		dur := ""
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		errMsg := e.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			e.AssociationID,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatQueueStats writes aggregate stats to w.
func formatQueueStats(out io.Writer, s queueStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total entries:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Processing:\t%d\n", s.Processing)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
