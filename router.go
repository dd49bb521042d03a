// Package semanticrouter answers questions from a self-growing semantic cache,
// delegating misses to a fallback answerer and absorbing its answers.
package semanticrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botirk38/semanticrouter/backends/inmemory"
	"github.com/botirk38/semanticrouter/fallback"
	"github.com/botirk38/semanticrouter/metrics"
	"github.com/botirk38/semanticrouter/options"
	"github.com/botirk38/semanticrouter/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrSeedFailed wraps any error raised while loading the seed set.
var ErrSeedFailed = errors.New("seeding the index failed")

// Router owns the similarity index and decides, per question, between a
// cached answer and a fallback call.
type Router struct {
	index     types.IndexBackend
	provider  types.EmbeddingProvider
	generator fallback.Generator

	threshold       float32
	apology         string
	missingKey      string
	fallbackTimeout time.Duration
	policy          options.CachePolicy
	coalesce        bool

	group   singleflight.Group
	logger  logrus.FieldLogger
	metrics metrics.Metrics
}

// New creates a Router with functional options, then seeds its index.
func New(ctx context.Context, opts ...options.Option) (*Router, error) {
	cfg := options.NewConfig()

	if err := cfg.Apply(opts...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Index == nil {
		cfg.Index = inmemory.NewIndex(cfg.Comparator)
	}
	if cfg.Generator == nil {
		cfg.Generator = fallback.GeneratorFunc(func(context.Context, string) fallback.Result {
			return fallback.Fail(fallback.ReasonNotConfigured, fallback.ErrNotConfigured)
		})
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewMetrics(metrics.InstanceInfo{})
	}
	seeds := cfg.Seeds
	if seeds == nil {
		seeds = DefaultSeeds()
	}

	r := &Router{
		index:           cfg.Index,
		provider:        cfg.Provider,
		generator:       cfg.Generator,
		threshold:       cfg.Threshold,
		apology:         cfg.Apology,
		missingKey:      cfg.MissingKeyMessage,
		fallbackTimeout: cfg.FallbackTimeout,
		policy:          cfg.Policy,
		coalesce:        cfg.Coalesce,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
	}

	if err := r.seed(ctx, seeds); err != nil {
		return nil, err
	}
	return r, nil
}

// seed resets the index and loads seeds in order.
func (r *Router) seed(ctx context.Context, seeds []options.Seed) error {
	if err := r.index.Reset(ctx); err != nil {
		return fmt.Errorf("%w: reset index: %w", ErrSeedFailed, err)
	}

	for _, s := range seeds {
		embedding, err := r.provider.EmbedText(ctx, s.Question)
		if err != nil {
			return fmt.Errorf("%w: embed %q: %w", ErrSeedFailed, s.Question, err)
		}
		if err := r.index.Insert(ctx, types.Entry{Question: s.Question, Embedding: embedding, Answer: s.Answer}); err != nil {
			return fmt.Errorf("%w: insert %q: %w", ErrSeedFailed, s.Question, err)
		}
	}

	r.refreshEntries(ctx)
	r.logger.WithField("seeds", len(seeds)).Info("Index seeded")
	return nil
}

// Ask answers question. It never fails: every problem is turned into an
// apology or diagnostic Answer and logged.
func (r *Router) Ask(ctx context.Context, question string) Answer {
	log := r.logger.WithField("question_len", len(question))

	embedding, err := r.provider.EmbedText(ctx, question)
	if err != nil {
		log.WithError(err).Error("Failed to embed question")
		r.metrics.ObserveLookup(metrics.OutcomeError, 0, false)
		return Answer{Question: question, Text: r.apology, Source: SourceError}
	}

	match, found, err := r.index.Nearest(ctx, embedding)
	if err != nil {
		log.WithError(err).Error("Failed to search index")
		r.metrics.ObserveLookup(metrics.OutcomeError, 0, false)
		return Answer{Question: question, Text: r.apology, Source: SourceError}
	}

	if found && match.Score > r.threshold {
		r.metrics.ObserveLookup(metrics.OutcomeHit, float64(match.Score), true)
		log.WithFields(logrus.Fields{
			"score":   match.Score,
			"matched": match.Entry.Question,
		}).Debug("Cache hit")
		return Answer{
			Question:        question,
			Text:            match.Entry.Answer,
			Source:          SourceHit,
			MatchedQuestion: match.Entry.Question,
			Score:           match.Score,
		}
	}
	r.metrics.ObserveLookup(metrics.OutcomeMiss, float64(match.Score), found)

	var answer Answer
	if r.coalesce {
		v, _, shared := r.group.Do(question, func() (interface{}, error) {
			return r.miss(ctx, question, embedding), nil
		})
		if shared {
			r.metrics.IncrementCoalesced()
		}
		answer = v.(Answer)
	} else {
		answer = r.miss(ctx, question, embedding)
	}

	if found {
		answer.MatchedQuestion = match.Entry.Question
		answer.Score = match.Score
	}
	return answer
}

// miss consults the fallback and inserts its outcome according to the cache policy.
func (r *Router) miss(ctx context.Context, question string, embedding []float32) Answer {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fallbackTimeout)
	defer cancel()

	start := time.Now()
	res := r.generator.Generate(fctx, question)
	elapsed := time.Since(start)
	r.metrics.ObserveFallback(res.Reason.String(), elapsed.Seconds())

	log := r.logger.WithFields(logrus.Fields{
		"question_len": len(question),
		"reason":       res.Reason.String(),
		"duration":     elapsed,
	})

	answer := Answer{Question: question}
	switch res.Reason {
	case fallback.ReasonNone:
		answer.Text, answer.Source = res.Answer, SourceFallback
	case fallback.ReasonNotConfigured:
		answer.Text, answer.Source = r.missingKey, SourceNotConfigured
		log.Warn("Fallback is not configured")
	default:
		answer.Text, answer.Source = r.apology, SourceApology
		log.WithError(res.Err).Error("Fallback failed")
	}

	if r.policy == options.CacheSuccessOnly && answer.Source != SourceFallback {
		return answer
	}

	// Inserted even if the request has gone away.
	if err := r.index.Insert(context.WithoutCancel(ctx), types.Entry{Question: question, Embedding: embedding, Answer: answer.Text}); err != nil {
		log.WithError(err).Error("Failed to insert answer")
		return answer
	}
	r.refreshEntries(ctx)
	log.WithField("source", answer.Source).Info("Answer cached")
	return answer
}

func (r *Router) refreshEntries(ctx context.Context) {
	n, err := r.index.Len(context.WithoutCancel(ctx))
	if err != nil {
		return
	}
	r.metrics.SetIndexEntries(n)
}

// AskResult holds the result of an async Ask.
type AskResult struct {
	Answer Answer
}

// AskAsync answers question in a new goroutine.
// Returns a channel that will receive the answer when complete.
func (r *Router) AskAsync(ctx context.Context, question string) <-chan AskResult {
	resultCh := make(chan AskResult, 1)
	go func() {
		defer close(resultCh)
		resultCh <- AskResult{Answer: r.Ask(ctx, question)}
	}()
	return resultCh
}

// AskBatch answers every question concurrently. The answers keep the order of questions.
func (r *Router) AskBatch(ctx context.Context, questions []string) []Answer {
	answers := make([]Answer, len(questions))
	channels := make([]<-chan AskResult, len(questions))
	for i, q := range questions {
		channels[i] = r.AskAsync(ctx, q)
	}
	for i, ch := range channels {
		answers[i] = (<-ch).Answer
	}
	return answers
}

// Nearest embeds text and returns the closest entry without touching the fallback.
func (r *Router) Nearest(ctx context.Context, text string) (types.Match, bool, error) {
	embedding, err := r.provider.EmbedText(ctx, text)
	if err != nil {
		return types.Match{}, false, fmt.Errorf("failed to embed text: %w", err)
	}
	return r.index.Nearest(ctx, embedding)
}

// Len returns the number of entries in the index.
func (r *Router) Len(ctx context.Context) (int, error) {
	return r.index.Len(ctx)
}

// Entries returns a snapshot of the index in insertion order.
func (r *Router) Entries(ctx context.Context) ([]types.Entry, error) {
	return r.index.Entries(ctx)
}

// Metrics returns the collector the router records into.
func (r *Router) Metrics() metrics.Metrics {
	return r.metrics
}

// Close releases the index and the embedding provider.
func (r *Router) Close() error {
	r.provider.Close()
	return r.index.Close()
}
