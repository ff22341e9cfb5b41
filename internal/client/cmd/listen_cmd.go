package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "wait for a peer to connect",
	Long: `listen waits for one peer on the transfer port, then opens the chat
and saves incoming files into the shared directory until the peer leaves.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.PrepareSharedDir(); err != nil {
			return err
		}

		rt, err := newRuntime(&cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.node.Listen(rt.ctx); err != nil {
			if rt.ctx.Err() != nil {
				return nil
			}
			return err
		}

		interact(rt.ctx, rt.node, os.Stdin, rt.bus)
		return nil
	},
}
