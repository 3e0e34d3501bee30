package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// MessageWriter is the part of *gelf.Writer used by GELFHandler.
type MessageWriter interface {
	WriteMessage(m *gelf.Message) error
}

// GELFHandler ships slog records to Graylog. Attributes become GELF
// additional fields; groups are joined with dots.
type GELFHandler struct {
	w        MessageWriter
	host     string
	facility string
	attrs    []slog.Attr
	groups   []string
}

// NewGELFHandler dials the Graylog UDP input at address.
func NewGELFHandler(address, facility string) (*GELFHandler, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	w.Facility = facility
	return NewGELFHandlerWithWriter(w, facility), nil
}

// NewGELFHandlerWithWriter builds a handler on an existing writer.
func NewGELFHandlerWithWriter(w MessageWriter, facility string) *GELFHandler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GELFHandler{w: w, host: host, facility: facility}
}

// Enabled reports true; level filtering happens in SlogManager.
func (h *GELFHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle converts r into a GELF message and writes it.
func (h *GELFHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(ts.UnixNano()) / float64(time.Second),
		Level:    syslogLevel(r.Level),
		Facility: h.facility,
		Extra:    map[string]interface{}{},
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		addExtra(msg.Extra, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addExtra(msg.Extra, prefix, a)
		return true
	})
	return h.w.WriteMessage(msg)
}

// WithAttrs records attrs under the current group.
func (h *GELFHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	prefix := strings.Join(h.groups, ".")
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return next
}

// WithGroup nests subsequent attributes under name.
func (h *GELFHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

// Close closes the underlying writer when it supports closing.
func (h *GELFHandler) Close() error {
	if c, ok := h.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (h *GELFHandler) clone() *GELFHandler {
	return &GELFHandler{
		w:        h.w,
		host:     h.host,
		facility: h.facility,
		attrs:    append([]slog.Attr(nil), h.attrs...),
		groups:   append([]string(nil), h.groups...),
	}
}

func addExtra(extra map[string]interface{}, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			addExtra(extra, key, ga)
		}
		return
	}
	// GELF reserves "_id" and requires the underscore prefix.
	if key == "id" {
		key = "id_"
	}
	switch a.Value.Kind() {
	case slog.KindString:
		extra["_"+key] = a.Value.String()
	case slog.KindInt64:
		extra["_"+key] = a.Value.Int64()
	case slog.KindUint64:
		extra["_"+key] = a.Value.Uint64()
	case slog.KindFloat64:
		extra["_"+key] = a.Value.Float64()
	case slog.KindBool:
		extra["_"+key] = a.Value.Bool()
	case slog.KindDuration:
		extra["_"+key] = a.Value.Duration().String()
	case slog.KindTime:
		extra["_"+key] = a.Value.Time().UTC().Format(time.RFC3339)
	default:
		extra["_"+key] = fmt.Sprint(a.Value.Any())
	}
}

// syslogLevel maps slog levels to the syslog severities GELF expects.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}
