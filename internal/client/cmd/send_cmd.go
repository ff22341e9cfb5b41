package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send peer-ip file...",
	Short: "send files to a listening peer and exit",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(&cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.node.Dial(rt.ctx, args[0]); err != nil {
			return err
		}

		var failed int
		for _, path := range args[1:] {
			if rt.ctx.Err() != nil {
				break
			}
			if res := sendFile(rt.ctx, rt.node, path, rt.bus); !res.OK {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args)-1)
		}
		return nil
	},
}
