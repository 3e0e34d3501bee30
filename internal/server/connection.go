package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/thorium-sim/thorium-core/internal/hub"
	"github.com/thorium-sim/thorium-core/internal/logging"
	"github.com/thorium-sim/thorium-core/pkg/streaming"
	"golang.org/x/time/rate"
)

const (
	sendChSize = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// connection is one WebSocket client. A single writeLoop owns all writes;
// the read loop runs on the handler goroutine.
type connection struct {
	id      string
	conn    *ws.Conn
	sub     *hub.Subscription
	sendCh  chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	logger  *slog.Logger
}

// handleWS upgrades the request. Topics listed in the "topics" query
// parameter (comma separated) are subscribed immediately.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var topics []string
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	sub, err := s.deps.Hub.Subscribe(topics...)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, streaming.ErrorMessage{Error: err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		s.logger.WarnContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	c := &connection{
		id:      uuid.NewString(),
		conn:    conn,
		sub:     sub,
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		limiter: s.limiter.newLimiter(),
	}
	c.logger = s.logger.With("conn", c.id)

	if !s.track(c) {
		c.close()
		return
	}
	defer s.untrack(c)

	c.logger.Info("WebSocket client connected", "remote", r.RemoteAddr, "topics", topics)

	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()

	ctx := logging.ContextWithAttrs(r.Context(), slog.String("conn", c.id))
	s.readLoop(ctx, c)
	c.close()
	c.logger.Info("WebSocket client disconnected", "dropped", sub.Dropped())
}

// track registers c and its write loop. It fails when the server is
// shutting down.
func (s *Server) track(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for c := range conns {
		c.close()
	}
}

// readLoop handles client messages until the socket fails or closes.
func (s *Server) readLoop(ctx context.Context, c *connection) {
	c.conn.SetReadLimit(maxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.sendError(fmt.Sprintf("invalid envelope: %v", err))
			continue
		}

		switch env.Type {
		case streaming.TypeSubscribe:
			var msg streaming.SubscribeMessage
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				c.sendError(fmt.Sprintf("invalid subscribe payload: %v", err))
				continue
			}
			if err := c.sub.Subscribe(msg.Topics...); err != nil {
				c.sendError(err.Error())
			}
		case streaming.TypeUnsubscribe:
			var msg streaming.SubscribeMessage
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				c.sendError(fmt.Sprintf("invalid unsubscribe payload: %v", err))
				continue
			}
			c.sub.Unsubscribe(msg.Topics...)
		case streaming.TypeCommand:
			var msg streaming.CommandMessage
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				c.sendError(fmt.Sprintf("invalid command payload: %v", err))
				continue
			}
			if c.limiter != nil && !c.limiter.Allow() {
				c.sendResult(streaming.ResultMessage{
					ID:      msg.ID,
					Command: msg.Command,
					Kind:    string(KindRateLimited),
					Error:   "rate limit exceeded",
				})
				continue
			}
			cmdCtx := logging.ContextWithAttrs(ctx, slog.String("command", msg.Command))
			c.sendResult(s.dispatch(cmdCtx, msg.ID, msg.Command, msg.Payload))
		default:
			c.sendError(fmt.Sprintf("unknown message type %q", env.Type))
		}
	}
}

// writeLoop drains topic envelopes and replies until the subscription or
// the connection ends.
func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.sub.C():
			if !ok {
				return
			}
			if err := c.write(ws.TextMessage, data); err != nil {
				return
			}
		case data := <-c.sendCh:
			if err := c.write(ws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}

// send queues a reply for the write loop. It gives up once the connection
// is closing.
func (c *connection) send(typ string, v any) {
	env, err := streaming.NewEnvelope(typ, v)
	if err != nil {
		c.logger.Error("Failed to encode reply", "type", typ, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("Failed to encode envelope", "type", typ, "error", err)
		return
	}
	select {
	case c.sendCh <- data:
	case <-c.done:
	}
}

func (c *connection) sendResult(res streaming.ResultMessage) {
	c.send(streaming.TypeResult, res)
}

func (c *connection) sendError(msg string) {
	c.send(streaming.TypeError, streaming.ErrorMessage{Error: msg})
}

// close ends the subscription and the socket. Safe to call repeatedly.
func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.sub.Close()
		_ = c.conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}
