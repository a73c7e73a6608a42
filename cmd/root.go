// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Config file override
	cfgFile string

	// Resolved settings, filled before any command runs
	settings Settings

	// logger is the file logger; commands that own the terminal never
	// write diagnostics anywhere else
	logger = log.New(io.Discard, "", 0)
)

// Settings is the merged view of flags, environment and config file
type Settings struct {
	URL         string
	Username    string
	NoSSLVerify bool
	Port        string
	Baud        int

	History        int
	StaleAfter     time.Duration
	PendingTimeout time.Duration
	LabelWidth     int

	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
}

// DispatcherOptions maps the settings onto the reconciliation core
func (s Settings) DispatcherOptions() telemetry.Options {
	return telemetry.Options{
		History:        s.History,
		StaleAfter:     s.StaleAfter,
		PendingTimeout: s.PendingTimeout,
		LabelWidth:     s.LabelWidth,
		Logger:         logger,
	}
}

var rootCmd = &cobra.Command{
	Use:   "argus-console",
	Short: "Terminal dashboard for the argus-recon trainer bridge",
	Long: `Argus Console - a terminal client for the argus-recon trainer bridge.

Connects to the bridge's snapshot stream and reconciles it into a live
dashboard: power readouts and chart, the discovered device list, the
integrity verdict with its latency chart, and the boost and simulation
controls. Text-mode commands cover stream logging and diagnostics.

Connection modes:
  WebSocket: --url ws://host:8080/ws [--username user]
  Serial:    --port /dev/ttyACM0 [--baud 115200]

Settings may also come from ARGUS_* environment variables or a YAML config
file (default $HOME/.config/argus-console/config.yaml).

For WebSocket authentication, the password is read from the ARGUS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.4.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.config/argus-console/config.yaml)")

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Reconciliation tuning
	flags.Int("history", telemetry.DefaultHistory, "Power chart window (samples)")
	flags.Duration("stale-after", telemetry.DefaultStaleAfter, "Mark the link stale after this much silence")
	flags.Duration("pending-timeout", telemetry.DefaultPendingTimeout, "How long a sent value waits for its echo")
	flags.Int("label-width", telemetry.DefaultLabelWidth, "Integrity chart label width (runes)")

	// File logging
	flags.String("log-file", defaultLogFile(), "Log file (rotated)")
	flags.Int("log-max-size", 10, "Log file size before rotation (MB)")
	flags.Int("log-max-backups", 3, "Rotated log files to keep")
	flags.Int("log-max-age", 28, "Days to keep rotated log files")

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "argus-console.log"
	}
	return filepath.Join(dir, "argus-console", "argus-console.log")
}

// loadSettings merges config file, environment and flags (flags win)
func loadSettings(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("ARGUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "argus-console"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings = Settings{
		URL:            viper.GetString("url"),
		Username:       viper.GetString("username"),
		NoSSLVerify:    viper.GetBool("no-ssl-verify"),
		Port:           viper.GetString("port"),
		Baud:           viper.GetInt("baud"),
		History:        viper.GetInt("history"),
		StaleAfter:     viper.GetDuration("stale-after"),
		PendingTimeout: viper.GetDuration("pending-timeout"),
		LabelWidth:     viper.GetInt("label-width"),
		LogFile:        viper.GetString("log-file"),
		LogMaxSize:     viper.GetInt("log-max-size"),
		LogMaxBackups:  viper.GetInt("log-max-backups"),
		LogMaxAge:      viper.GetInt("log-max-age"),
	}

	if settings.Baud <= 0 {
		return fmt.Errorf("invalid baud rate: %d", settings.Baud)
	}
	if settings.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive, got %s", settings.StaleAfter)
	}

	setupLogging(settings)
	logger.Printf("argus-console %s starting: %s", cmd.Root().Version, cmd.CommandPath())
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Printf("config: %s", used)
	}
	return nil
}

// setupLogging points the logger at a rotating file. An empty path
// disables file logging.
func setupLogging(s Settings) {
	if s.LogFile == "" {
		logger = log.New(io.Discard, "", 0)
		return
	}
	logger = log.New(&lumberjack.Logger{
		Filename:   s.LogFile,
		MaxSize:    s.LogMaxSize,
		MaxBackups: s.LogMaxBackups,
		MaxAge:     s.LogMaxAge,
	}, "", log.LstdFlags|log.Lmicroseconds)
}

// SafeGo runs fn on its own goroutine. A panic is written to the log with
// its stack before it is re-raised, since the TUI owns stdout.
func SafeGo(l *log.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
