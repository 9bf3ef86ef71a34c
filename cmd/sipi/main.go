package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	d "github.com/tj/go-debug"

	"github.com/greut/sipi/config"
	"github.com/greut/sipi/image"
	"github.com/greut/sipi/internal/logger"
)

// renderers lists the decoders built into this binary.
var renderers = map[string]func() image.Decoder{
	"imaging": func() image.Decoder { return image.NewImagingDecoder() },
}

var configFile string

func main() {
	var rootCmd = &cobra.Command{
		Use:          "sipi",
		Short:        "IIIF image server over a sharded image tree.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Define the configuration file to use.")

	// Add commands
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewShardCommand())
	rootCmd.AddCommand(NewTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads path, or the defaults when no file is given.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path == "" {
		cfg, err = config.Decode("")
	} else {
		logger.Info("Reading configuration from %s", path)
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.Debug != "" {
		d.Enable(cfg.Debug)
	}
	return cfg, nil
}
