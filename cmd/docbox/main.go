package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docboxhq/docbox/internal/syncsdk"
	"github.com/docboxhq/docbox/internal/utils"
	"github.com/docboxhq/docbox/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "docbox",
	Short:   "DocBox CLI",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("server", "s", syncsdk.DefaultBaseURL, "DocBox server URL")
	rootCmd.PersistentFlags().StringP("token", "t", "", "DocBox API token")
	rootCmd.PersistentFlags().StringP("config", "c", "", "DocBox config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	for _, arg := range os.Args[1:] {
		if arg == "--verbose" {
			level = slog.LevelDebug
		}
	}

	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	handlers := []slog.Handler{stderrHandler}

	// mirror everything into the log file at debug level
	if logFile := openLogFile(); logFile != nil {
		logInterceptor := utils.NewLogInterceptor(logFile)
		fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			// Do not include time as it is added by the log interceptor.
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{}
				}
				return a
			},
		})
		handlers = append(handlers, fileHandler)
	}

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(handlers...)))
}

func openLogFile() *os.File {
	logPath := filepath.Join(home, ".docbox", "logs", "cli.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil
	}
	return file
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".docbox"))
		viper.AddConfigPath(filepath.Join(home, ".config/docbox"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("token", cmd.Flags().Lookup("token"))

	viper.SetEnvPrefix("DOCBOX")
	viper.AutomaticEnv()

	return nil
}

// newSDK builds the API client from the resolved configuration.
func newSDK() (*syncsdk.SDK, error) {
	cfg := &syncsdk.Config{
		BaseURL: viper.GetString("server_url"),
	}
	if token := viper.GetString("token"); token != "" {
		cfg.Credentials = syncsdk.StaticToken(token)
	}
	return syncsdk.New(cfg)
}
