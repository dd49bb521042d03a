package remote

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/botirk38/semanticrouter/similarity"
	"github.com/botirk38/semanticrouter/types"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "semanticrouter:"

// RedisBackend implements IndexBackend on top of plain Redis data structures
// so that several router processes can share one index.
//
// Layout under the configured prefix:
//
//	<prefix>seq            INCR counter giving each new question its position
//	<prefix>order          sorted set, member = question, score = position
//	<prefix>entry:<q>      hash with question, answer and the packed embedding
//
// Nearest is a linear scan performed client side, identical in semantics to
// the in-memory index.
type RedisBackend struct {
	client     *redis.Client
	prefix     string
	dimensions int
	comparator similarity.SimilarityFunc
}

// parseRedisURL parses a Redis URL and returns redis.Options
func parseRedisURL(connectionString string) (*redis.Options, error) {
	// Handle redis:// or rediss:// URLs
	if strings.HasPrefix(connectionString, "redis://") || strings.HasPrefix(connectionString, "rediss://") {
		parsedURL, err := url.Parse(connectionString)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}

		opts := &redis.Options{
			Addr: parsedURL.Host,
		}

		if parsedURL.Scheme == "rediss" {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		if parsedURL.User != nil {
			opts.Username = parsedURL.User.Username()
			if password, ok := parsedURL.User.Password(); ok {
				opts.Password = password
			}
		}

		// Database number from path
		if parsedURL.Path != "" && parsedURL.Path != "/" {
			dbStr := strings.TrimPrefix(parsedURL.Path, "/")
			db, err := strconv.Atoi(dbStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Redis database %q: %w", dbStr, err)
			}
			opts.DB = db
		}

		return opts, nil
	}

	if connectionString == "" {
		return nil, fmt.Errorf("redis connection string is required")
	}

	// Simple address format (host:port)
	return &redis.Options{
		Addr: connectionString,
	}, nil
}

// NewRedisBackend creates a new Redis backend and verifies connectivity.
func NewRedisBackend(ctx context.Context, config types.BackendConfig) (*RedisBackend, error) {
	opts, err := parseRedisURL(config.ConnectionString)
	if err != nil {
		return nil, err
	}

	// Explicit config values win over the URL
	if config.Username != "" {
		opts.Username = config.Username
	}
	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.Database != 0 {
		opts.DB = config.Database
	}
	if config.Timeout > 0 {
		opts.ReadTimeout = config.Timeout
		opts.WriteTimeout = config.Timeout
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &RedisBackend{
		client:     client,
		prefix:     prefix,
		dimensions: config.Dimensions,
		comparator: similarity.CosineSimilarity,
	}, nil
}

func (b *RedisBackend) seqKey() string   { return b.prefix + "seq" }
func (b *RedisBackend) orderKey() string { return b.prefix + "order" }

func (b *RedisBackend) entryKey(question string) string {
	return b.prefix + "entry:" + question
}

// packEmbedding converts a float32 slice to little-endian bytes for Redis storage
func packEmbedding(fs []float32) []byte {
	buf := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(f))
	}
	return buf
}

// unpackEmbedding reverses packEmbedding
func unpackEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding of %d bytes", len(buf))
	}
	fs := make([]float32, len(buf)/4)
	for i := range fs {
		fs[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4 : (i+1)*4]))
	}
	return fs, nil
}

// Insert stores the entry. The position marker and the hash are written in a
// single MULTI so readers never observe half an entry.
func (b *RedisBackend) Insert(ctx context.Context, entry types.Entry) error {
	if b.dimensions != 0 && len(entry.Embedding) != b.dimensions {
		return fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(entry.Embedding), b.dimensions)
	}

	seq, err := b.client.Incr(ctx, b.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate position in Redis: %w", err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// NX keeps the first position of a replaced question
		pipe.ZAddNX(ctx, b.orderKey(), redis.Z{Score: float64(seq), Member: entry.Question})
		pipe.HSet(ctx, b.entryKey(entry.Question),
			"question", entry.Question,
			"answer", entry.Answer,
			"embedding", packEmbedding(entry.Embedding),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert entry in Redis: %w", err)
	}

	return nil
}

// questions returns every question in insertion order
func (b *RedisBackend) questions(ctx context.Context) ([]string, error) {
	qs, err := b.client.ZRange(ctx, b.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list questions from Redis: %w", err)
	}
	return qs, nil
}

// load fetches the entries for questions in one round trip, skipping any
// that disappeared concurrently.
func (b *RedisBackend) load(ctx context.Context, questions []string) ([]types.Entry, error) {
	cmds := make([]*redis.SliceCmd, len(questions))
	_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, q := range questions {
			cmds[i] = pipe.HMGet(ctx, b.entryKey(q), "answer", "embedding")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries from Redis: %w", err)
	}

	entries := make([]types.Entry, 0, len(questions))
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
			continue
		}
		answer, _ := vals[0].(string)
		packed, _ := vals[1].(string)
		embedding, err := unpackEmbedding([]byte(packed))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", questions[i], err)
		}
		entries = append(entries, types.Entry{
			Question:  questions[i],
			Embedding: embedding,
			Answer:    answer,
		})
	}
	return entries, nil
}

// Nearest scans all entries in insertion order and keeps the strictly best score.
func (b *RedisBackend) Nearest(ctx context.Context, query []float32) (types.Match, bool, error) {
	qs, err := b.questions(ctx)
	if err != nil {
		return types.Match{}, false, err
	}
	if len(qs) == 0 {
		return types.Match{}, false, nil
	}

	entries, err := b.load(ctx, qs)
	if err != nil {
		return types.Match{}, false, err
	}

	best := -1
	var bestScore float32
	for i := range entries {
		if len(entries[i].Embedding) != len(query) {
			return types.Match{}, false, fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(query), len(entries[i].Embedding))
		}
		score := b.comparator(query, entries[i].Embedding)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return types.Match{}, false, nil
	}

	return types.Match{Entry: entries[best], Score: bestScore}, true, nil
}

// Get retrieves an entry by question
func (b *RedisBackend) Get(ctx context.Context, question string) (types.Entry, bool, error) {
	entries, err := b.load(ctx, []string{question})
	if err != nil {
		return types.Entry{}, false, err
	}
	if len(entries) == 0 {
		return types.Entry{}, false, nil
	}
	return entries[0], true, nil
}

// Len returns the number of entries
func (b *RedisBackend) Len(ctx context.Context) (int, error) {
	n, err := b.client.ZCard(ctx, b.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries in Redis: %w", err)
	}
	return int(n), nil
}

// Entries returns all entries in insertion order
func (b *RedisBackend) Entries(ctx context.Context) ([]types.Entry, error) {
	qs, err := b.questions(ctx)
	if err != nil {
		return nil, err
	}
	return b.load(ctx, qs)
}

// Reset clears all keys with the configured prefix
func (b *RedisBackend) Reset(ctx context.Context) error {
	pattern := b.prefix + "*"
	var keys []string
	var cursor uint64

	for {
		result, nextCursor, err := b.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys from Redis: %w", err)
		}

		keys = append(keys, result...)
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	if len(keys) > 0 {
		if err := b.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to reset Redis index: %w", err)
		}
	}

	return nil
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
