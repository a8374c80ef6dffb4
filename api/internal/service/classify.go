package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hs-classifier/api/internal/classifier"
	"hs-classifier/api/internal/hscode"
	"hs-classifier/api/internal/metrics"
	"hs-classifier/api/internal/store"
)

var ErrEmptyDescription = errors.New("description is empty")

const (
	msgInvalidOutput  = "AI classification failed due to invalid output format."
	msgNotInitialized = "Classification engine is not initialized. Check API Key."
)

type Result struct {
	Predictions []hscode.Prediction
	Engine      string
	Model       string
	Cached      bool
}

type ClassifyService struct {
	engine         classifier.Engine
	cache          store.Cache
	metrics        *metrics.Metrics
	log            *zap.Logger
	maxPredictions int
	timeout        time.Duration
}

// NewClassifyService wires an engine to the cache. A nil engine is allowed:
// every call then fails with a "not initialized" message, and the server still
// starts without an API key.
func NewClassifyService(engine classifier.Engine, cache store.Cache, m *metrics.Metrics, log *zap.Logger, maxPredictions int, timeout time.Duration) *ClassifyService {
	if cache == nil {
		cache = store.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if maxPredictions <= 0 {
		maxPredictions = hscode.DefaultMaxPredictions
	}
	return &ClassifyService{
		engine:         engine,
		cache:          cache,
		metrics:        m,
		log:            log,
		maxPredictions: maxPredictions,
		timeout:        timeout,
	}
}

func (s *ClassifyService) engineName() string {
	if s.engine == nil {
		return "none"
	}
	return s.engine.Name()
}

// Classify returns up to maxPredictions ranked HS codes for description.
func (s *ClassifyService) Classify(ctx context.Context, description string) (Result, error) {
	engName := s.engineName()
	description = strings.TrimSpace(description)
	if description == "" {
		s.metrics.Requests.WithLabelValues(engName, metrics.OutcomeInvalidInput).Inc()
		return Result{}, ErrEmptyDescription
	}
	if s.engine == nil {
		s.metrics.Requests.WithLabelValues(engName, metrics.OutcomeEngineError).Inc()
		return Result{}, classifier.ErrEngineNotConfigured
	}

	model := s.engine.GetModel()
	key := store.NewKey(description, engName, model)

	if preds, err := s.cache.Find(ctx, key); err == nil {
		s.metrics.CacheHits.Inc()
		s.metrics.Requests.WithLabelValues(engName, metrics.OutcomeSuccess).Inc()
		s.log.Debug("classification cache hit", zap.String("desc_hash", key.DescHash))
		return Result{Predictions: hscode.Rank(preds, s.maxPredictions), Engine: engName, Model: model, Cached: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("classification cache lookup failed", zap.Error(err))
	}

	// a deadline set by the caller wins over the default
	cctx := ctx
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	preds, err := s.engine.Classify(cctx, description)
	s.metrics.Latency.WithLabelValues(engName).Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := metrics.OutcomeEngineError
		if errors.Is(err, hscode.ErrInvalidOutput) {
			outcome = metrics.OutcomeBadOutput
		}
		s.metrics.Requests.WithLabelValues(engName, outcome).Inc()
		return Result{}, fmt.Errorf("%s classify: %w", engName, err)
	}

	ranked := hscode.Rank(preds, s.maxPredictions)
	if err := s.cache.Upsert(ctx, key, ranked); err != nil {
		s.log.Warn("classification cache store failed", zap.Error(err))
	}
	s.metrics.Requests.WithLabelValues(engName, metrics.OutcomeSuccess).Inc()
	s.log.Info("classified",
		zap.String("engine", engName),
		zap.String("model", model),
		zap.Int("predictions", len(ranked)),
		zap.Duration("took", time.Since(start)),
	)
	return Result{Predictions: ranked, Engine: engName, Model: model}, nil
}

// Ping checks the cache backend.
func (s *ClassifyService) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// ErrorMessage turns a classification failure into the message shown to API callers.
func ErrorMessage(err error) string {
	var apiErr *classifier.APIError
	switch {
	case errors.Is(err, classifier.ErrEngineNotConfigured):
		return msgNotInitialized
	case errors.Is(err, hscode.ErrInvalidOutput):
		return msgInvalidOutput
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return "An unexpected error occurred: " + err.Error()
	}
}
