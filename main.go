package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	app "github.com/rocketscienceinc/battleship-backend/internal"
	"github.com/rocketscienceinc/battleship-backend/internal/config"
	"github.com/rocketscienceinc/battleship-backend/internal/entity"
	"github.com/rocketscienceinc/battleship-backend/internal/identity"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "battleship",
	Short: "Two player Battleship on a shared ledger",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a player node: HTTP API and peer server",
	RunE: func(_ *cobra.Command, _ []string) error {
		conf := config.MustLoad(configPath)
		logger := initLogger(conf)

		if err := app.RunApp(logger, conf); err != nil {
			return fmt.Errorf("app run failed: %w", err)
		}

		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print the public key of the configured identity",
	Run: func(cmd *cobra.Command, _ []string) {
		conf := config.MustLoad(configPath)
		signer := identity.NewSigner(entity.Party(conf.Identity.Name), conf.Identity.Seed)

		fmt.Fprintln(cmd.OutOrStdout(), identity.EncodePublicKey(signer.PublicKey()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to the config file")
	rootCmd.AddCommand(serveCmd, keyCmd)
}

// main - is the entry point of the application.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initialize logger.
func initLogger(conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
