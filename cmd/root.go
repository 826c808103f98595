// Package cmd implements the jekyll-news command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ounols/jekyll-news/cmd/crawl"
	"github.com/ounols/jekyll-news/cmd/dedup"
	"github.com/ounols/jekyll-news/cmd/extract"
	"github.com/ounols/jekyll-news/cmd/tickers"
	"github.com/ounols/jekyll-news/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "jekyll-news",
		Short: "Translate financial news into Jekyll posts",
		Long: `jekyll-news lists articles from financial news sites, extracts and
translates their bodies, links stock tickers and writes Jekyll posts.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Assigned here rather than in the literal: initConfig reads rootCmd's flags.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initConfig()
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml or ./config/config.yml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jekyll-news version %s\n", Version)
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(dedup.Command())
	rootCmd.AddCommand(extract.Command())
	rootCmd.AddCommand(tickers.Command())
}

// initConfig layers defaults, the config file and the environment on the
// global viper instance.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		// An explicit --config must exist; the default search may find nothing.
		if cfgFile != "" {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		fmt.Fprintf(os.Stderr, "Warning: config file not found, using defaults and environment\n")
	}

	if err := bindAppEnvVars(); err != nil {
		return err
	}
	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}

	setupDevelopmentLogging()
	return nil
}

// bindAppEnvVars maps the documented environment variables to config keys.
func bindAppEnvVars() error {
	bindings := [][]string{
		{"app.environment", "APP_ENV"},
		{"app.debug", "APP_DEBUG"},
		{"logger.level", "LOG_LEVEL"},
		{"logger.encoding", "LOG_FORMAT"},
		{"redis.enabled", "REDIS_ENABLED"},
		{"redis.address", "REDIS_ADDRESS"},
		{"redis.password", "REDIS_PASSWORD"},
		{"translation.endpoint", "TRANSLATOR_ENDPOINT"},
		{"publisher.output_dir", "POSTS_DIR"},
	}
	for _, b := range bindings {
		if err := viper.BindEnv(b...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[1], err)
		}
	}
	return nil
}

// setupDevelopmentLogging switches to readable debug logs in development
// or when --debug / APP_DEBUG is set.
func setupDevelopmentLogging() {
	debug := Debug || viper.GetBool("app.debug")
	if debug {
		viper.Set("logger.level", "debug")
	}
	if viper.GetString("app.environment") == "development" {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}
	Debug = debug
}
