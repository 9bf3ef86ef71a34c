package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/greut/sipi/cache"
	"github.com/greut/sipi/config"
	"github.com/greut/sipi/iiif"
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/internal/logger"
	"github.com/greut/sipi/metrics"
	"github.com/greut/sipi/shard"
	"github.com/greut/sipi/source"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config]",
		Short: "Serve the IIIF Image API.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	newDecoder, ok := renderers[cfg.Renderer]
	if !ok {
		return fmt.Errorf("renderer %q is not built in this binary (try -tags vips)", cfg.Renderer)
	}

	m := metrics.New(cfg.Metrics.Enabled)

	var engine *shard.Engine
	if slices.Contains(cfg.Images.Sources, "disk") {
		if err := os.MkdirAll(cfg.Images.Root, 0o755); err != nil {
			return err
		}
		var err error
		engine, err = shard.New(cfg.Images.Root, shard.WithObserver(m.ObserveStep))
		if err != nil {
			return err
		}
		m.SetShardLevels(engine.Levels())
		logger.Info("Serving %s (%d levels)", engine.Root(), engine.Levels())
	}

	store, err := cache.NewCacheFromConfig(cfg.Images.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := source.NewSourceFromConfig(ctx, cfg, engine, store)
	if err != nil {
		return err
	}

	decoder := newDecoder()
	renderer := iiif.NewRenderer(src, decoder, image.NewParser(cfg.Strict, image.DefaultFormats()), m)

	server := &http.Server{
		Addr:              cfg.Listen(),
		Handler:           iiif.NewServer(cfg, renderer, engine, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Server running on %v with the %s renderer", server.Addr, decoder.Name())
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
