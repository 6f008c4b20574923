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
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/permtree/permtree/internal/utils"
	"github.com/permtree/permtree/internal/version"
)

var (
	home, _           = os.UserHomeDir()
	defaultConfigDir  = filepath.Join(home, ".permtree")
	defaultLogFile    = filepath.Join(home, ".permtree", "permtree.log")
	configFileName    = "config"
	defaultACLXattr   = "system.nfs4_acl"
	defaultAdminGroup = "admin"
)

var rootCmd = &cobra.Command{
	Use:     "permtree",
	Short:   "Resolve and apply declarative access rules to file trees",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default "+filepath.Join(defaultConfigDir, "config.yaml")+")")
	rootCmd.PersistentFlags().String("log-file", defaultLogFile, "log file path (empty disables file logging)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

func main() {
	// local dev overrides, absent file is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(defaultConfigDir)
		viper.AddConfigPath(filepath.Join(home, ".config/permtree"))
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

	viper.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))
	viper.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	viper.SetEnvPrefix("PERMTREE")
	viper.AutomaticEnv()

	return setupLogging()
}

// setupLogging installs a tinted console handler plus, when configured, a
// plain text handler appending to the log file.
func setupLogging() error {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	handlers := []slog.Handler{consoleHandler}
	if logFile := viper.GetString("log_file"); logFile != "" {
		if err := utils.EnsureParent(logFile); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	slog.SetDefault(slog.New(utils.NewFanoutHandler(handlers...)))
	return nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Printf("permtree %s\n", version.Short())
}
