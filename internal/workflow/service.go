// Package workflow runs the advice pipeline: extract, news, market, final.
// Each completed stage is pushed to an events.Stream as soon as it is ready.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"advisor-core/internal/events"
	"advisor-core/internal/monitor"
	"advisor-core/pkg/model"
)

// Advisor turns text into an intent and a combined context into advice.
type Advisor interface {
	Extract(ctx context.Context, text string) (*model.Intent, error)
	Synthesize(ctx context.Context, cc model.CombinedContext) (string, error)
}

// Fetcher gathers news and market data. Implementations absorb their own failures.
type Fetcher interface {
	FetchNews(ctx context.Context, intent *model.Intent, lookback time.Duration) []model.NewsItem
	FetchMarket(ctx context.Context, intent *model.Intent, lookback time.Duration) []model.MarketSnapshot
}

// Request is the inbound question.
type Request = model.ChatRequest

// Service wires an Advisor and a Fetcher into the staged pipeline.
type Service struct {
	advisor  Advisor
	fetcher  Fetcher
	lookback time.Duration

	logger  *zap.Logger
	bus     *events.Bus
	metrics *monitor.SystemMetrics
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBus publishes run outcomes.
func WithBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithMetrics records run counts and latencies.
func WithMetrics(m *monitor.SystemMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the pipeline. lookback is passed unchanged to the fetcher.
func NewService(advisor Advisor, fetcher Fetcher, lookback time.Duration, opts ...Option) *Service {
	s := &Service{
		advisor:  advisor,
		fetcher:  fetcher,
		lookback: lookback,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process starts one run and returns its stream. The stream is finite and
// terminates exactly once: done plus sentinel on success, a single error otherwise.
func (s *Service) Process(ctx context.Context, req Request) *events.Stream {
	stream := events.NewStream()
	go s.run(ctx, req, stream)
	return stream
}

func (s *Service) run(ctx context.Context, req Request, stream *events.Stream) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.IncrementWorkflows()
	}

	err := s.stages(ctx, req, stream)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.WorkflowLatency.RecordDuration(elapsed)
	}

	if err != nil {
		s.logger.Error("[WORKFLOW] run failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		stream.Fail(err)
		if s.metrics != nil {
			s.metrics.IncrementFailures()
		}
		s.bus.Publish(events.EventWorkflowFailed, events.WorkflowFinished{ChatID: req.ChatID, Err: err.Error(), Duration: elapsed})
		return
	}

	stream.Complete()
	s.logger.Info("[WORKFLOW] run completed", zap.String("chat_id", req.ChatID), zap.Duration("elapsed", elapsed))
	s.bus.Publish(events.EventWorkflowCompleted, events.WorkflowFinished{ChatID: req.ChatID, Duration: elapsed})
}

// stages runs the pipeline in order and stops at the first error.
// Panics from collaborators are converted to errors.
func (s *Service) stages(ctx context.Context, req Request, stream *events.Stream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow panic: %v", r)
		}
	}()

	text := req.UserText()

	intent, err := s.extract(ctx, text)
	if err != nil {
		return err
	}
	stream.Send(events.KindExtract, intent)

	if err := ctx.Err(); err != nil {
		return err
	}
	news := s.fetcher.FetchNews(ctx, intent, s.lookback)
	if news == nil {
		news = []model.NewsItem{}
	}
	stream.Send(events.KindNews, news)

	if err := ctx.Err(); err != nil {
		return err
	}
	markets := s.fetcher.FetchMarket(ctx, intent, s.lookback)
	if markets == nil {
		markets = []model.MarketSnapshot{}
	}
	stream.Send(events.KindMarket, markets)

	if s.metrics != nil {
		s.metrics.AddResults(len(news), len(markets))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	advice, err := s.synthesize(ctx, model.CombinedContext{
		ChatID:   req.ChatID,
		UserText: text,
		Intent:   intent,
		News:     news,
		Markets:  markets,
	})
	if err != nil {
		return err
	}
	stream.Send(events.KindFinal, advice)
	return nil
}

func (s *Service) extract(ctx context.Context, text string) (*model.Intent, error) {
	var timer *monitor.Timer
	if s.metrics != nil {
		timer = monitor.NewTimer(s.metrics.AdvisorLatency)
		defer timer.Stop()
	}
	intent, err := s.advisor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		intent = model.FallbackIntent()
	}
	return intent, nil
}

func (s *Service) synthesize(ctx context.Context, cc model.CombinedContext) (string, error) {
	var timer *monitor.Timer
	if s.metrics != nil {
		timer = monitor.NewTimer(s.metrics.AdvisorLatency)
		defer timer.Stop()
	}
	return s.advisor.Synthesize(ctx, cc)
}
