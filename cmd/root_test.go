// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Settings
// ============================================================

// useConfig points loadSettings at a temporary YAML file
func useConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	prevCfg, prevSettings, prevLogger := cfgFile, settings, logger
	t.Cleanup(func() {
		cfgFile, settings, logger = prevCfg, prevSettings, prevLogger
	})
	cfgFile = path
	return dir
}

func TestRootCommandLoadsSettingsBeforeRun(t *testing.T) {
	require.NotNil(t, rootCmd.PersistentPreRunE)
	assert.NotEmpty(t, rootCmd.Version)

	for _, name := range []string{"dashboard", "watch", "devices", "send", "probe", "wait"} {
		sub, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Same(t, rootCmd, sub.Root(), name)
	}
}

func TestLoadSettingsFromConfigFile(t *testing.T) {
	useConfig(t, `
url: ws://bridge.local:8080/ws
username: rider
stale-after: 5s
pending-timeout: 1500ms
label-width: 12
log-file: `+filepath.Join(t.TempDir(), "argus.log")+`
`)

	require.NoError(t, loadSettings(waitCmd, nil))

	assert.Equal(t, "ws://bridge.local:8080/ws", settings.URL)
	assert.Equal(t, "rider", settings.Username)
	assert.Equal(t, 5*time.Second, settings.StaleAfter)
	assert.Equal(t, 1500*time.Millisecond, settings.PendingTimeout)
	assert.Equal(t, 115200, settings.Baud)

	opts := settings.DispatcherOptions()
	assert.Equal(t, 12, opts.LabelWidth)
	assert.Equal(t, 5*time.Second, opts.StaleAfter)
	assert.NotNil(t, opts.Logger)
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	useConfig(t, "baud: 0\nlog-file: \"\"\n")
	err := loadSettings(waitCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid baud rate")
}

func TestLoadSettingsMissingExplicitConfig(t *testing.T) {
	dir := useConfig(t, "")
	cfgFile = filepath.Join(dir, "missing.yaml")

	err := loadSettings(waitCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

// ============================================================
// Logging
// ============================================================

func TestSetupLoggingWritesFile(t *testing.T) {
	prev := logger
	t.Cleanup(func() { logger = prev })

	path := filepath.Join(t.TempDir(), "nested", "argus.log")
	setupLogging(Settings{LogFile: path, LogMaxSize: 1, LogMaxBackups: 1, LogMaxAge: 1})
	logger.Printf("hello from the test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")

	setupLogging(Settings{})
	assert.Equal(t, io.Discard, logger.Writer())
}

func TestSafeGoRunsFn(t *testing.T) {
	done := make(chan struct{})
	SafeGo(log.New(io.Discard, "", 0), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo never ran fn")
	}
}
