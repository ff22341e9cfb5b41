package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect peer-ip",
	Short: "connect to a listening peer",
	Long: `connect dials a peer started with listen, opens the chat and lets you
send files with /send path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(&cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.node.Dial(rt.ctx, args[0]); err != nil {
			return err
		}

		interact(rt.ctx, rt.node, os.Stdin, rt.bus)
		return nil
	},
}
