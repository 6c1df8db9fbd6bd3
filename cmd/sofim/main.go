// Package main is the sofim CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/cli"
	"github.com/sofim-uhk/sofim/internal/config"
	"github.com/sofim-uhk/sofim/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/sofim/config.yaml"

var (
	configPath   string
	debugMode    bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:           "sofim",
	Short:         "Faculty knowledge base: web and course catalog ingest, hybrid retrieval, chat answers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(serveCmd, syncCmd, statusCmd, askCmd, sourcesCmd, versionCmd)
}

// loadConfig loads path. When path is the default and a config.yaml exists in
// the working directory, that file is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config, creates the logger and initializes all components.
func setup(ctx context.Context, opts ...appOption) (*app, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("path", resolved))
	return newApp(ctx, cfg, logger, opts...)
}

func format() (cli.OutputFormat, error) {
	return cli.ParseFormat(outputFormat)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
