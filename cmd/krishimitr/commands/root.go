// Package commands implements the krishimitr terminal client.
package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/krishimitr/assistant/internal/app"
	"github.com/krishimitr/assistant/internal/config"
	"github.com/krishimitr/assistant/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg     *config.Config
	logger  *observability.Logger
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "krishimitr",
	Short: "KrishiMitr - a farming assistant that keeps working offline",
	Long: `KrishiMitr answers agricultural questions in English and Hindi.

Online, questions go to the KrishiMitr API and every answer is cached on this
device. Offline, answers come from the cached knowledge base instead. Run
"krishimitr chat" to start a conversation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Observability.LogLevel = "debug"
		}

		// Chat output owns the terminal, so logs go to a file.
		out := os.Stderr
		if path := cfg.Observability.LogFile; path != "" {
			f, err := observability.OpenLogFile(path)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logFile = f
			out = f
		}
		logger = app.NewLogger(cfg, "krishimitr", out)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
