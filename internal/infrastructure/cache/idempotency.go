// Package cache provides Redis-backed request deduplication.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"salesledger/internal/core/apperror"
	"salesledger/pkg/logger"
)

const (
	keyPrefix = "idempotency:"

	// Sale responses with many lines are compressed before they reach Redis.
	compressThreshold = 4 * 1024
	compressionZstd   = "zstd"
)

type keyStatus string

const (
	statusPending keyStatus = "pending"
	statusSuccess keyStatus = "success"
	statusFailed  keyStatus = "failed"
)

type record struct {
	UserID      string    `json:"user_id"`
	Operation   string    `json:"operation"`
	RequestHash string    `json:"request_hash"`
	Status      keyStatus `json:"status"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	Compression string    `json:"compression,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Replay is a stored response returned for a repeated request.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore remembers the outcome of mutating requests by key.
type IdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) (*IdempotencyStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &IdempotencyStore{
		client:     client,
		ttl:        ttl,
		staleAfter: time.Minute,
		now:        time.Now,
		encoder:    encoder,
		decoder:    decoder,
	}, nil
}

// AcquireKey claims key for a request. It returns a Replay when the key
// already holds a finished response, and nil when the caller should proceed.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error) {
	rec := record{
		UserID:      userID,
		Operation:   operation,
		RequestHash: requestHash,
		Status:      statusPending,
		CreatedAt:   s.now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+key, raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	existing, err := s.load(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return s.AcquireKey(ctx, key, userID, operation, requestHash)
	}
	if err != nil {
		return nil, err
	}

	if existing.UserID != userID || existing.Operation != operation || existing.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}

	switch existing.Status {
	case statusSuccess, statusFailed:
		body, err := s.decodeBody(existing)
		if err != nil {
			return nil, err
		}
		return &Replay{
			StatusCode:  normalizeReplayStatus(existing.StatusCode),
			ContentType: normalizeReplayContentType(existing.StatusCode, existing.ContentType),
			Body:        body,
		}, nil
	default:
		if s.now().Sub(existing.CreatedAt) < s.staleAfter {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// Reclaim a pending key whose owner never finished.
		if err := s.client.SetArgs(ctx, keyPrefix+key, raw, redis.SetArgs{Mode: "XX", TTL: s.ttl}).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("reclaim idempotency key: %w", err)
		}
		logger.Warn(ctx, "reclaimed stale idempotency key", "key", key, "operation", operation)
		return nil, nil
	}
}

// CompleteKey stores a successful response for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, statusSuccess, statusCode, contentType, response)
}

// FailKey stores an error response for replay.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, statusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status keyStatus, statusCode int, contentType string, response any) error {
	rec, err := s.load(ctx, key)
	if err != nil {
		return fmt.Errorf("load idempotency key: %w", err)
	}

	var body []byte
	if response != nil {
		if body, err = json.Marshal(response); err != nil {
			return fmt.Errorf("marshal idempotent response: %w", err)
		}
	}
	rec.Status = status
	rec.StatusCode = statusCode
	rec.ContentType = contentType
	rec.Body = body
	rec.Compression = ""
	if len(body) > compressThreshold {
		rec.Body = s.encoder.EncodeAll(body, nil)
		rec.Compression = compressionZstd
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.SetArgs(ctx, keyPrefix+key, raw, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) load(ctx context.Context, key string) (*record, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

func (s *IdempotencyStore) decodeBody(rec *record) ([]byte, error) {
	switch rec.Compression {
	case "":
		return rec.Body, nil
	case compressionZstd:
		body, err := s.decoder.DecodeAll(rec.Body, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress idempotent response: %w", err)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("unknown idempotency compression %q", rec.Compression)
	}
}

func normalizeReplayStatus(code int) int {
	if code < 100 || code > 599 {
		return http.StatusOK
	}
	return code
}

func normalizeReplayContentType(code int, contentType string) string {
	if code == http.StatusNoContent {
		return ""
	}
	if strings.TrimSpace(contentType) == "" {
		return "application/json"
	}
	return contentType
}
