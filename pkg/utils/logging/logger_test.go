package logging_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
)

func TestLevelFiltering(t *testing.T) {
	testCases := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"WARN", false, false, true},
		{"warning", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("debug-line")
			logger.Info("info-line")
			logger.Warn("warn-line")
			logger.Error("error-line")

			out := buf.String()
			gt.Equal(t, strings.Contains(out, "debug-line"), tc.wantDebug)
			gt.Equal(t, strings.Contains(out, "info-line"), tc.wantInfo)
			gt.Equal(t, strings.Contains(out, "warn-line"), tc.wantWarn)
			gt.S(t, out).Contains("error-line")
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, ok := logging.ParseLevel("Debug")
	gt.True(t, ok)
	gt.Equal(t, lvl, slog.LevelDebug)

	lvl, ok = logging.ParseLevel("verbose")
	gt.False(t, ok)
	gt.Equal(t, lvl, slog.LevelInfo)
}

func TestContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf).With("component", "bridge")

	ctx := logging.With(context.Background(), logger)
	gt.Equal(t, logging.From(ctx), logger)

	logging.From(ctx).Info("hello")
	gt.S(t, buf.String()).Contains("hello")
	gt.S(t, buf.String()).Contains("bridge")
}

func TestFromFallsBackToDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	replaced := logging.New("warn", buf)
	logging.SetDefault(replaced)

	gt.Equal(t, logging.From(context.Background()), replaced)
	logging.From(context.Background()).Warn("from default")
	gt.S(t, buf.String()).Contains("from default")
}

func TestOpen(t *testing.T) {
	w, closer, err := logging.Open("stderr")
	gt.NoError(t, err)
	gt.Equal(t, w, io.Writer(os.Stderr))
	gt.NoError(t, closer())

	path := filepath.Join(t.TempDir(), "quakead.log")
	w, closer, err = logging.Open(path)
	gt.NoError(t, err)
	logging.New("info", w).Info("to file")
	gt.NoError(t, closer())

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains("to file")
}
