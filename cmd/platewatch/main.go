package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jo-hoe/platewatch/internal/core"
)

var configPath string

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}

	// First check if config path is provided via environment variable
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

// loadConfig reads the config file, falling back to defaults when the default
// location does not exist
func loadConfig() (*core.ServiceConfig, error) {
	path := getConfigPath()
	if configPath == "" && os.Getenv("CONFIG_PATH") == "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Printf("no config found at %s, using defaults", path)
			return core.DefaultConfig(), nil
		}
	}
	config, err := core.LoadConfig(path)
	if err != nil {
		log.Printf("failed to load config from %s: %v", path, err)
		return nil, err
	}
	return config, nil
}

func newCoreService() (*core.CoreService, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.SlogLevel()})))

	coreService, err := core.NewCoreService(config)
	if err != nil {
		return nil, fmt.Errorf("failed to start core service: %w", err)
	}
	return coreService, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "platewatch",
		Short:        "Vehicle arrival tracking from license plate images",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
