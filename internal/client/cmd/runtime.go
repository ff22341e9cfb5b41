package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/p2p-share/internal/client/console"
	"github.com/rudransh-shrivastava/p2p-share/internal/config"
	"github.com/rudransh-shrivastava/p2p-share/internal/crypto"
	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/rudransh-shrivastava/p2p-share/internal/node"
	"github.com/rudransh-shrivastava/p2p-share/internal/store"
	"github.com/sirupsen/logrus"
)

// runtime is everything a peer command needs: logging, the event bus with
// its console printer, optional history and the node itself.
type runtime struct {
	ctx    context.Context
	stop   context.CancelFunc
	logger *logrus.Logger
	bus    *event.Bus
	store  *store.Store
	node   *node.Node

	printed chan struct{}
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	log := logger.New(os.Stderr, cfg.LogLevel)

	var cipher *crypto.Cipher
	if cfg.Key != "" {
		c, err := crypto.NewCipher(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("chat key: %w", err)
		}
		cipher = c
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus(0)
	printer := console.NewStdout()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printer.Run(bus.Events())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rt := &runtime{
		ctx:     ctx,
		stop:    stop,
		logger:  log,
		bus:     bus,
		store:   st,
		printed: printed,
	}
	rt.node = node.New(cfg, node.Options{
		Logger: log,
		Events: bus,
		Store:  st,
		Cipher: cipher,
	})
	return rt, nil
}

func openStore(cfg *config.Config, log *logrus.Logger) (*store.Store, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("history database: %w", err)
	}
	log.WithFields(logrus.Fields{"path": cfg.DBPath}).Debug("History enabled")
	return st, nil
}

// Close stops the node first so its last events still reach the printer.
func (rt *runtime) Close() {
	rt.stop()
	if err := rt.node.Close(); err != nil {
		rt.logger.WithFields(logrus.Fields{"error": err}).Warn("Closing node")
	}
	rt.bus.Close()
	<-rt.printed

	if rt.bus.Dropped() > 0 {
		rt.logger.WithFields(logrus.Fields{"dropped": rt.bus.Dropped()}).Debug("Console fell behind")
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.WithFields(logrus.Fields{"error": err}).Warn("Closing history")
		}
	}
}
