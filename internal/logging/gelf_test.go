package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryGELF struct {
	messages []*gelf.Message
}

func (m *memoryGELF) WriteMessage(msg *gelf.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

func TestGELFHandler_Message(t *testing.T) {
	w := &memoryGELF{}
	logger := slog.New(NewGELFHandlerWithWriter(w, "thorium-core"))

	logger.Warn("slow command", "command", "startFlight", "ms", 120, "ok", true)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "slow command", msg.Short)
	assert.Equal(t, int32(4), msg.Level)
	assert.Equal(t, "thorium-core", msg.Facility)
	assert.Equal(t, "startFlight", msg.Extra["_command"])
	assert.Equal(t, int64(120), msg.Extra["_ms"])
	assert.Equal(t, true, msg.Extra["_ok"])
	assert.NotZero(t, msg.TimeUnix)
}

func TestGELFHandler_AttrsAndGroups(t *testing.T) {
	w := &memoryGELF{}
	logger := slog.New(NewGELFHandlerWithWriter(w, "")).
		With("component", "hub").
		WithGroup("redis").
		With("addr", "localhost:6379")

	logger.Info("connected", "db", 0, slog.Group("pool", slog.Int("size", 10)))

	require.Len(t, w.messages, 1)
	extra := w.messages[0].Extra
	assert.Equal(t, "hub", extra["_component"])
	assert.Equal(t, "localhost:6379", extra["_redis.addr"])
	assert.Equal(t, int64(0), extra["_redis.db"])
	assert.Equal(t, int64(10), extra["_redis.pool.size"])
}

func TestGELFHandler_ReservedID(t *testing.T) {
	w := &memoryGELF{}
	logger := slog.New(NewGELFHandlerWithWriter(w, ""))

	logger.Info("created", "id", "m1", "timeout", 2*time.Second)

	extra := w.messages[0].Extra
	assert.Equal(t, "m1", extra["_id_"])
	assert.NotContains(t, extra, "_id")
	assert.Equal(t, "2s", extra["_timeout"])
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}

func TestContextHandler_MergesAttrs(t *testing.T) {
	w := &memoryGELF{}
	logger := slog.New(NewContextHandler(NewGELFHandlerWithWriter(w, "")))

	ctx := ContextWithAttrs(context.Background(), slog.String("conn", "c-7"))
	ctx = ContextWithAttrs(ctx, slog.String("cmd", "createMission"))
	logger.InfoContext(ctx, "dispatch")
	logger.Info("plain")

	require.Len(t, w.messages, 2)
	assert.Equal(t, "c-7", w.messages[0].Extra["_conn"])
	assert.Equal(t, "createMission", w.messages[0].Extra["_cmd"])
	assert.NotContains(t, w.messages[1].Extra, "_conn")
	assert.Empty(t, AttrsFromContext(context.Background()))
}
