// Package monitor periodically reports store, hub and journal status.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Counter reports collection sizes keyed by topic.
type Counter interface {
	Counts() map[string]int
}

// SubscriberCounter reports open hub subscriptions.
type SubscriberCounter interface {
	Subscribers() int
}

// QueueStats reports journal backlog.
type QueueStats interface {
	Pending() int
	Dropped() uint64
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Store   Counter
	Hub     SubscriberCounter
	Journal QueueStats // optional
	Logger  *slog.Logger
	// StatusFile, when set, is rewritten with the JSON status on every tick.
	StatusFile string
}

// Status is a point-in-time view of the process.
type Status struct {
	Time           time.Time      `json:"time"`
	Uptime         string         `json:"uptime"`
	Collections    map[string]int `json:"collections"`
	Subscribers    int            `json:"subscribers"`
	JournalPending int            `json:"journalPending"`
	JournalDropped uint64         `json:"journalDropped"`
}

// Service manages status monitoring.
type Service struct {
	deps    Dependencies
	started time.Time

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, started: time.Now()}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current status.
func (s *Service) Status() Status {
	now := time.Now()
	st := Status{
		Time:        now.UTC(),
		Uptime:      now.Sub(s.started).Round(time.Second).String(),
		Collections: s.deps.Store.Counts(),
		Subscribers: s.deps.Hub.Subscribers(),
	}
	if s.deps.Journal != nil {
		st.JournalPending = s.deps.Journal.Pending()
		st.JournalDropped = s.deps.Journal.Dropped()
	}
	return st
}

// Start reports status every interval until Stop is called. Starting a
// running monitor is a no-op.
func (s *Service) Start(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.report()
			}
		}
	}()
}

// Stop halts the monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}

func (s *Service) report() {
	st := s.Status()
	s.deps.Logger.Debug("Status",
		"collections", st.Collections,
		"subscribers", st.Subscribers,
		"journalPending", st.JournalPending,
		"journalDropped", st.JournalDropped,
	)

	if s.deps.StatusFile == "" {
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.deps.Logger.Error("Error encoding status", "error", err)
		return
	}
	if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0o644); err != nil {
		s.deps.Logger.Error("Error writing status file", "path", s.deps.StatusFile, "error", err)
	}
}
