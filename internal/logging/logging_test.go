package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		app     string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			app:     "thorium-core",
			want:    filepath.Join("logs", "thorium-core.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			app:     "thorium-core",
			want:    filepath.Join(".", "logs", "thorium-core.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "thorium"),
			app:     "thorium-core",
			want:    filepath.Join("/var", "log", "thorium", "thorium-core.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.app, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thorium-core.log")
	w := NewFileWriter(path)
	defer w.Close()

	_, err := w.Write([]byte("line\n"))
	assert.NoError(t, err)
	assert.Equal(t, path, w.Filename)
	assert.FileExists(t, path)
}
