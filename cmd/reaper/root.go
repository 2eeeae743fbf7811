package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-reaper/internal/config"
)

var (
	envFile     string
	logLevelArg string

	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reaper",
	Short: "Find and archive Slack channels nobody uses any more",
	Long: `reaper tracks the public channels of a Slack workspace and reports the
ones with no activity for a number of days. Run "reaper serve" for the bot
(mention it with "list 90days" or "archive 90days"), or use the list and
archive subcommands for one-off runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; a missing file is not an error.
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
		}

		c, err := config.Load()
		if err != nil {
			return err
		}
		if logLevelArg != "" {
			c.LogLevel = logLevelArg
		}
		cfg = c
		logger = setupLogger(c)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevelArg, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(cacheCmd)
}

func setupLogger(c *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	l := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if c.IsDevelopment() {
		l = l.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if level, err := zerolog.ParseLevel(c.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	log.Logger = l
	return l
}
