package cmd

import (
	"fmt"
	"os"

	"github.com/rudransh-shrivastava/p2p-share/internal/config"
	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultDBPath = "history.sqlite3"

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   `p2pshare`,
	Short: `direct peer to peer chat and file sharing`,
	Long: `p2pshare connects two machines directly over TCP. One side listens,
the other connects; both can chat and the connecting side can send files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		return cfg.Validate()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.New(os.Stderr, logrus.InfoLevel.String()).Error(err)
		os.Exit(1)
	}
}

func init() {
	cfg.DBPath = defaultDBPath

	flags := rootCmd.PersistentFlags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "file transfer port")
	flags.IntVar(&cfg.ChatPort, "chat-port", cfg.ChatPort, "chat port")
	flags.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "chunk size in bytes for file transfers")
	flags.DurationVar(&cfg.SocketTimeout, "timeout", cfg.SocketTimeout, "socket timeout for accept, connect and reads")
	flags.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "connection attempts before giving up")
	flags.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "pause between connection attempts")
	flags.StringVar(&cfg.SharedDir, "shared-dir", cfg.SharedDir, "directory that receives incoming files")
	flags.StringVar(&cfg.Key, "key", cfg.Key, "shared chat secret; empty sends chat in plaintext")
	flags.IntVar(&cfg.QueueCapacity, "queue-size", cfg.QueueCapacity, "outbound chat messages kept while disconnected")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite history file; empty disables history")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(keygenCmd)
}
