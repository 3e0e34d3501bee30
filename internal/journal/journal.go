// Package journal keeps an audit trail of every dispatched command in a gorm
// database. Entries are queued by the dispatcher observer and written in
// batches by a background flusher.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/queue"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = 2 * time.Second
	DefaultRecentLimit   = 50
	MaxRecentLimit       = 1000
)

// Entry is one journaled command.
type Entry struct {
	ID         uint                        `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time                   `gorm:"index" json:"createdAt"`
	Command    string                      `gorm:"index;size:128" json:"command"`
	Payload    datatypes.JSON              `json:"payload"`
	OK         bool                        `json:"ok"`
	ErrorKind  string                      `gorm:"size:32" json:"kind,omitempty"`
	Error      string                      `json:"error,omitempty"`
	DurationMs float64                     `json:"durationMs"`
	Topics     datatypes.JSONSlice[string] `json:"topics,omitempty"`
}

// TableName overrides the gorm default.
func (Entry) TableName() string {
	return "command_journal"
}

// Options tune batching.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueLimit    int
}

// Journal queues dispatch records and writes them to db.
type Journal struct {
	db        *gorm.DB
	queue     *queue.Queue[Entry]
	logger    zerolog.Logger
	batchSize int
	interval  time.Duration
}

// New migrates the journal table and returns a Journal writing to db.
func New(db *gorm.DB, opts Options, log zerolog.Logger) (*Journal, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}

	return &Journal{
		db:        db,
		queue:     queue.NewBounded[Entry](opts.QueueLimit),
		logger:    log,
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
	}, nil
}

// Observe implements dispatcher.Observer. It never blocks on the database.
func (j *Journal) Observe(_ context.Context, r dispatcher.Record) {
	entry := Entry{
		CreatedAt:  r.Timestamp.UTC(),
		Command:    r.Command,
		Payload:    payloadJSON(r.Payload),
		OK:         r.Err == nil,
		DurationMs: float64(r.Duration.Microseconds()) / 1000,
		Topics:     datatypes.JSONSlice[string](r.Topics),
	}
	if r.Err != nil {
		entry.ErrorKind = string(dispatcher.ErrorKind(r.Err))
		entry.Error = r.Err.Error()
	}

	if dropped := j.queue.Push(entry); dropped > 0 {
		j.logger.Warn().Int("dropped", dropped).Msg("Journal queue full, dropped oldest entries")
	}
}

// payloadJSON keeps valid JSON as is and stores anything else as a string.
// An absent payload is stored as JSON null.
func payloadJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON("null")
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return datatypes.JSON(quoted)
}

// Run flushes queued entries every flush interval until ctx is done, then
// performs a final flush.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := j.Flush(flushCtx); err != nil {
				j.logger.Error().Err(err).Msg("Final journal flush failed")
			}
			return nil
		case <-ticker.C:
			if err := j.Flush(ctx); err != nil {
				j.logger.Error().Err(err).Msg("Journal flush failed")
			}
		}
	}
}

// Flush writes every queued entry in batches. A failed batch is put back at
// the front of the queue and the error returned.
func (j *Journal) Flush(ctx context.Context) error {
	for {
		batch := j.queue.PopN(j.batchSize)
		if len(batch) == 0 {
			return nil
		}

		if err := j.db.WithContext(ctx).Create(&batch).Error; err != nil {
			for i := range batch {
				batch[i].ID = 0
			}
			if dropped := j.queue.Requeue(batch...); dropped > 0 {
				j.logger.Warn().Int("dropped", dropped).Msg("Journal queue full, dropped newest entries")
			}
			return fmt.Errorf("failed to write %d journal entries: %w", len(batch), err)
		}
		j.logger.Trace().Int("count", len(batch)).Msg("Journal entries written")
	}
}

// Recent returns up to limit entries, newest first. Limits outside
// 1..MaxRecentLimit are replaced by DefaultRecentLimit or clamped.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	entries := []Entry{}
	if err := j.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// Pending returns the number of queued, unwritten entries.
func (j *Journal) Pending() int {
	return j.queue.Len()
}

// Dropped returns how many entries were discarded because the queue was full.
func (j *Journal) Dropped() uint64 {
	return j.queue.Dropped()
}
