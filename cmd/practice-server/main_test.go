package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipico/practice-server/internal/client"
	"github.com/sipico/practice-server/internal/config"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"-dev"}, []string{"--dev"}},
		{[]string{"serve", "-dev", "--admin-dir", "ui"}, []string{"serve", "--dev", "--admin-dir", "ui"}},
		{[]string{"--dev"}, []string{"--dev"}},
		{[]string{"-development"}, []string{"-development"}},
	}

	for _, tt := range tests {
		got := normalizeArgs(tt.args)
		assert.Equal(t, tt.want, got, "normalizeArgs(%v)", tt.args)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func newFlagCmd(flags *serveFlags) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "")
	cmd.Flags().StringVar(&flags.adminDir, "admin-dir", config.DefaultAdminDir, "")
	return cmd
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var flags serveFlags
		cmd := newFlagCmd(&flags)
		require.NoError(t, cmd.ParseFlags(nil))

		cfg, err := loadConfig(cmd, flags)
		require.NoError(t, err)
		assert.False(t, cfg.DevMode)
		assert.Equal(t, config.DefaultAdminDir, cfg.AdminDir)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("ADMIN_DIR", "/from/env")
		var flags serveFlags
		cmd := newFlagCmd(&flags)
		require.NoError(t, cmd.ParseFlags([]string{"--dev", "--admin-dir", "/from/flag"}))

		cfg, err := loadConfig(cmd, flags)
		require.NoError(t, err)
		assert.True(t, cfg.DevMode)
		assert.Equal(t, "/from/flag", cfg.AdminDir)
	})

	t.Run("environment kept without flag", func(t *testing.T) {
		t.Setenv("ADMIN_DIR", "/from/env")
		var flags serveFlags
		cmd := newFlagCmd(&flags)
		require.NoError(t, cmd.ParseFlags(nil))

		cfg, err := loadConfig(cmd, flags)
		require.NoError(t, err)
		assert.Equal(t, "/from/env", cfg.AdminDir)
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		var flags serveFlags
		cmd := newFlagCmd(&flags)
		require.NoError(t, cmd.ParseFlags(nil))

		_, err := loadConfig(cmd, flags)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LOG_LEVEL")
	})
}

func TestNewLogger(t *testing.T) {
	level := new(slog.LevelVar)

	var buf bytes.Buffer
	newLogger(&config.Config{LogFormat: "json"}, &buf, level).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "json output: %s", buf.String())

	buf.Reset()
	newLogger(&config.Config{LogFormat: "text"}, &buf, level).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	level.Set(slog.LevelWarn)
	newLogger(&config.Config{LogFormat: "text"}, &buf, level).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestHealthCommand(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
		}))
		defer srv.Close()

		var stdout, stderr bytes.Buffer
		cmd := newRootCmd(&stdout, &stderr)
		cmd.SetArgs([]string{"health", "--url", srv.URL})

		require.NoError(t, cmd.Execute())
		assert.Equal(t, "healthy\n", stdout.String())
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		var stdout, stderr bytes.Buffer
		cmd := newRootCmd(&stdout, &stderr)
		cmd.SetArgs([]string{"health", "--url", srv.URL})

		require.Error(t, cmd.Execute())
		assert.Contains(t, stderr.String(), "unhealthy")
		assert.Empty(t, stdout.String())
	})
}

func TestRootRejectsArgs(t *testing.T) {
	cmd := newRootCmd(io.Discard, io.Discard)
	cmd.SetArgs([]string{"unexpected"})
	require.Error(t, cmd.Execute())
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := &config.Config{
		Port:           config.DefaultPort,
		LogLevel:       "error",
		LogFormat:      "text",
		IdentityField:  config.DefaultIdentity,
		PasswordHasher: config.DefaultHasher,
		MaxBodyBytes:   config.DefaultMaxBodyBytes,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, cfg, ln, io.Discard) }()

	c := client.New(client.WithBaseURL("http://" + ln.Addr().String()))
	require.Eventually(t, func() bool {
		return c.Health(context.Background()) == nil
	}, 5*time.Second, 20*time.Millisecond)

	names, err := c.Collections(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, "games")

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout):
		t.Fatal("server did not stop")
	}
}
