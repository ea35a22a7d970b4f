package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"trendline-lab/internal/domain"
	"trendline-lab/internal/storage"
)

const keyPrefix = "trendline"

// Options tunes the latest entry store.
type Options struct {
	RecentLimit int           // records kept in the recent list, default 500
	TTL         time.Duration // expiry of both keys, default 24h; refreshed on every save
}

// LatestEntryStore implements storage.LatestEntryStore using Redis.
// Each instrument has a latest key holding one JSON record and a recent list, newest first.
type LatestEntryStore struct {
	client *goredis.Client
	opts   Options
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewLatestEntryStore creates a store on an existing client.
func NewLatestEntryStore(client *goredis.Client, opts Options) *LatestEntryStore {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 500
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &LatestEntryStore{client: client, opts: opts}
}

// Compile-time interface check.
var _ storage.LatestEntryStore = (*LatestEntryStore)(nil)

func latestKey(instrument string) string {
	return keyPrefix + ":latest:" + instrument
}

func recentKey(instrument string) string {
	return keyPrefix + ":recent:" + instrument
}

// SaveLatest records rec as the newest record of its instrument.
func (s *LatestEntryStore) SaveLatest(ctx context.Context, rec *domain.EntryRecord) error {
	if rec == nil || rec.Entry.Instrument == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal entry record: %w", err)
	}

	instrument := rec.Entry.Instrument
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, latestKey(instrument), payload, s.opts.TTL)
	pipe.LPush(ctx, recentKey(instrument), payload)
	pipe.LTrim(ctx, recentKey(instrument), 0, int64(s.opts.RecentLimit-1))
	pipe.Expire(ctx, recentKey(instrument), s.opts.TTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}

	return nil
}

// FetchLatest returns the newest record. Returns ErrNotFound if none was saved.
func (s *LatestEntryStore) FetchLatest(ctx context.Context, instrument string) (*domain.EntryRecord, error) {
	data, err := s.client.Get(ctx, latestKey(instrument)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec domain.EntryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal entry record: %w", err)
	}

	return &rec, nil
}

// FetchRecent returns up to limit records, newest first.
func (s *LatestEntryStore) FetchRecent(ctx context.Context, instrument string, limit int) ([]*domain.EntryRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	items, err := s.client.LRange(ctx, recentKey(instrument), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	result := make([]*domain.EntryRecord, 0, len(items))
	for _, item := range items {
		var rec domain.EntryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal entry record: %w", err)
		}
		result = append(result, &rec)
	}

	return result, nil
}
