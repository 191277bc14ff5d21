// Spins up the kelvin server, compatible w/ the Redis protocol.

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/kelvindb/kelvin/pkg/config"
	"github.com/kelvindb/kelvin/pkg/port"
	"github.com/kelvindb/kelvin/pkg/store"
	"github.com/kelvindb/kelvin/pkg/utils"
)

var printVersion = flag.Bool("print_version", false, "Print the version and exit.")

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Kelvin build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		select {
		case sig := <-signals:
			slog.Info("Received termination signal, cancelling server context.", "signal", sig)
			cancel()
		}
	}()

	loop := store.NewLoop()

	var st *store.Store
	timer := store.NewSystemTimer(store.SystemClock{}, loop, func() {
		if err := st.Sweep(); err != nil {
			slog.Error("Sweep failed.", "err", err)
		}
	})
	st = store.NewStore(store.SystemClock{}, timer, store.NewPooledAllocator())
	st.RegisterReleaser(func(e *store.Entry) {
		slog.Debug("Expired key.", "key", string(e.Key()))
	})

	if err := port.RunServer(ctx, st, loop); err != nil {
		slog.Error("Kelvin server stopped.", "err", err)
		os.Exit(1)
	}
}
