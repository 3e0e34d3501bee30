package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisQueueSize    = 256
	redisWriteTimeout = 3 * time.Second
)

// RedisConfig holds the Redis mirror settings.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type redisMessage struct {
	topic string
	data  []byte
}

// RedisSink mirrors snapshots to Redis. Each envelope is stored under
// "<prefix>snapshot:<topic>" for late readers and published on the channel
// "<prefix><topic>". Writes happen on a single goroutine; Send never blocks.
type RedisSink struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	sendCh chan redisMessage
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRedisClient builds a client from cfg and verifies it with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  redisWriteTimeout,
			WriteTimeout: redisWriteTimeout,
			PoolSize:     10,
			MinIdleConns: 2,
		}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return rdb, nil
}

// NewRedisSink starts a sink writing through client.
func NewRedisSink(client *redis.Client, prefix string, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RedisSink{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis"),
		sendCh: make(chan redisMessage, redisQueueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// Channel returns the pub/sub channel for topic.
func (s *RedisSink) Channel(topic string) string {
	return s.prefix + topic
}

// Key returns the key holding the latest snapshot of topic.
func (s *RedisSink) Key(topic string) string {
	return s.prefix + "snapshot:" + topic
}

// Send queues an envelope. Drops it if the queue is full.
func (s *RedisSink) Send(topic string, data []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.sendCh <- redisMessage{topic: topic, data: data}:
	default:
		s.logger.Warn("Redis send queue full, dropping snapshot", "topic", topic)
	}
}

func (s *RedisSink) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.sendCh:
			if err := s.write(msg); err != nil {
				s.logger.Warn("Redis mirror write failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

func (s *RedisSink) write(msg redisMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisWriteTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.Key(msg.topic), msg.data, 0)
	pipe.Publish(ctx, s.Channel(msg.topic), msg.data)
	_, err := pipe.Exec(ctx)
	return err
}

// Close stops the write loop and closes the client.
func (s *RedisSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.client.Close()
	})
	return err
}
