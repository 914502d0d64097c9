package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestRun_SetupFailureWritesNothing(t *testing.T) {
	out := t.TempDir()
	t.Chdir(t.TempDir())
	t.Setenv("IEXEC_OUT", out)
	t.Setenv("IEXEC_APP_DEVELOPER_SECRET", "{not json")
	t.Setenv("IEXEC_REQUESTER_SECRET_1", `{"emailSubject":"Hi","emailContentMultiAddr":"/ipfs/Qm"}`)

	var logs bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), &logs))
	assert.Contains(t, logs.String(), "invalid task configuration")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_InvalidEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IEXEC_BULK_SLICE_SIZE", "many")

	var logs bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), &logs))
	assert.Contains(t, logs.String(), "failed to load environment")
}
