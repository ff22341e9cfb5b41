package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/rudransh-shrivastava/p2p-share/internal/store"
	"github.com/rudransh-shrivastava/p2p-share/internal/transfer"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "show recent transfers and chat messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DBPath == "" {
			return errors.New("history is disabled, set --db")
		}
		st, err := openStore(&cfg, logger.New(os.Stderr, cfg.LogLevel))
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		transfers, err := st.RecentTransfers(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		messages, err := st.RecentChat(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		printHistory(cmd.OutOrStdout(), transfers, messages)
		return nil
	},
}

func printHistory(out io.Writer, transfers []store.Transfer, messages []store.ChatMessage) {
	fmt.Fprintln(out, "Transfers:")
	if len(transfers) == 0 {
		fmt.Fprintln(out, "  none")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, t := range transfers {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			t.StartedAt.Format(time.DateTime),
			t.Direction,
			t.Status,
			t.Name,
			transfer.FormatBytes(uint64(t.Size)),
			t.Peer,
		)
	}
	_ = w.Flush()

	fmt.Fprintln(out, "Chat:")
	if len(messages) == 0 {
		fmt.Fprintln(out, "  none")
	}
	for _, m := range messages {
		fmt.Fprintf(out, "  <%s> %s: %s\n", m.Timestamp.Format(time.DateTime), m.Sender, m.Text)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", store.DefaultLimit, "entries to show per section")
}
