// Package influx writes command timing points to InfluxDB, falling back to a
// gzipped line protocol file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/thorium-sim/thorium-core/internal/config"
	"github.com/thorium-sim/thorium-core/internal/dispatcher"
)

// Measurement is the name of the per-command point.
const Measurement = "command"

// retention applied to a bucket created on first connect.
const retentionSeconds = 60 * 60 * 24 * 90

// PointWriter is the subset of the InfluxDB WriteAPI used by Manager.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point)
	Flush()
}

// Manager records one point per dispatched command.
type Manager struct {
	client influxdb2.Client
	writer PointWriter
	logger zerolog.Logger

	mu     sync.Mutex
	backup *gzip.Writer
	file   io.Closer
}

// NewWithWriter returns a Manager writing to w.
func NewWithWriter(w PointWriter, log zerolog.Logger) *Manager {
	return &Manager{writer: w, logger: log}
}

// NewWithBackup returns a Manager writing gzipped line protocol to w.
func NewWithBackup(w io.Writer, log zerolog.Logger) *Manager {
	m := &Manager{logger: log, backup: gzip.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		m.file = c
	}
	return m
}

// Connect dials InfluxDB, makes sure the org and bucket exist and starts the
// asynchronous writer. When the server is unreachable and cfg.BackupPath is
// set, points go to the backup file instead.
func Connect(ctx context.Context, cfg config.InfluxConfig, log zerolog.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, errors.New("influx.enabled is false")
	}

	client := influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", cfg.Protocol, cfg.Host, cfg.Port),
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		if cfg.BackupPath == "" {
			return nil, fmt.Errorf("influxdb not reachable: %v", err)
		}
		log.Warn().Str("backupPath", cfg.BackupPath).
			Msg("Failed to reach InfluxDB, writing to backup file")

		file, err := os.OpenFile(cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("error creating backup file: %w", err)
		}
		return NewWithBackup(file, log), nil
	}

	if err := ensureBucket(ctx, client, cfg.Org, cfg.Bucket, log); err != nil {
		client.Close()
		return nil, err
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			log.Error().Err(writeErr).Str("bucket", cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(writeAPI.Errors())

	log.Info().Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
	m := NewWithWriter(writeAPI, log)
	m.client = client
	return m, nil
}

func ensureBucket(ctx context.Context, client influxdb2.Client, orgName, bucket string, log zerolog.Logger) error {
	org, err := client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		log.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("error creating organization %s: %w", orgName, err)
		}
	}

	if _, err = client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
		return nil
	}

	log.Info().Str("bucket", bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %s: %w", bucket, err)
	}
	return nil
}

// CommandPoint builds the point for one dispatch record.
func CommandPoint(r dispatcher.Record) *influxdb2_write.Point {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("command", r.Command).
		AddTag("ok", fmt.Sprint(r.Err == nil)).
		AddField("duration_ms", float64(r.Duration.Microseconds())/1000).
		AddField("topics", len(r.Topics)).
		SetTime(ts)
	if r.Err != nil {
		p.AddTag("kind", string(dispatcher.ErrorKind(r.Err)))
	}
	return p
}

// Observe implements dispatcher.Observer.
func (m *Manager) Observe(_ context.Context, r dispatcher.Record) {
	if err := m.WritePoint(CommandPoint(r)); err != nil {
		m.logger.Error().Err(err).Str("command", r.Command).Msg("Failed to write command point")
	}
}

// WritePoint writes point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.writer != nil {
		m.writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return errors.New("influxdb client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.backup != nil {
		err = m.backup.Close()
		m.backup = nil
	}
	if m.file != nil {
		err = errors.Join(err, m.file.Close())
		m.file = nil
	}
	return err
}
