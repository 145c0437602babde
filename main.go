package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"remy/config"
	"remy/setup"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(cautionCmd)
	rootCmd.AddCommand(setupCmd)

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("provider", "", "Model provider (openai or gemini)")
	rootCmd.PersistentFlags().String("openai-api-key", "", "OpenAI API key")
	rootCmd.PersistentFlags().String("gemini-api-key", "", "Google Gemini API key")
	rootCmd.PersistentFlags().Int("http-port", 8000, "HTTP server port")
	rootCmd.PersistentFlags().String("server", "", "Server URL for client commands (default http://localhost:<http-port>)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag(
		"openai_api_key",
		rootCmd.PersistentFlags().Lookup("openai-api-key"),
	)
	viper.BindPFlag(
		"gemini_api_key",
		rootCmd.PersistentFlags().Lookup("gemini-api-key"),
	)
	viper.BindPFlag("http_port", rootCmd.PersistentFlags().Lookup("http-port"))
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	logger = log.New(os.Stderr)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn("reading config file", "error", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "remy",
	Short: "Remy watches and listens while you cook",
	Long: `Remy is a kitchen assistant. It segments what you say, samples the camera
every second, checks progress against the current recipe step and streams
its observations and replies to any connected client.`,
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Choose a model provider and store API keys in config.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		setup.RunSetup(viper.GetViper())
	},
}

func loadConfig(mainLogger *log.Logger) *config.Config {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		mainLogger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

func serverURL() string {
	if url := viper.GetString("server"); url != "" {
		return url
	}
	return fmt.Sprintf("http://localhost:%d", viper.GetInt("http_port"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type loggers struct {
	main, hear, see, think, http *log.Logger
}

func createLoggers() loggers {
	level, err := log.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = log.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetReportCaller(level == log.DebugLevel)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(24)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	return loggers{
		main:  logger.With().WithPrefix("main"),
		hear:  logger.With().WithPrefix("hear"),
		see:   logger.With().WithPrefix("see"),
		think: logger.With().WithPrefix("think"),
		http:  logger.With().WithPrefix("http"),
	}
}
