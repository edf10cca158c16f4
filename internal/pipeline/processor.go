package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/guarzo/pkmprice/internal/cards"
	"github.com/guarzo/pkmprice/internal/concurrent"
	"github.com/guarzo/pkmprice/internal/metrics"
	"github.com/guarzo/pkmprice/internal/model"
	"github.com/guarzo/pkmprice/internal/prices"
	"github.com/guarzo/pkmprice/internal/progress"
	"github.com/guarzo/pkmprice/internal/sink"
)

// DefaultTimeout bounds a single card lookup.
const DefaultTimeout = 10 * time.Second

// Stages an item can fail in.
const (
	StageFetch  = "fetch"
	StageRecord = "record"
)

// Fetcher looks up a card by catalog id.
type Fetcher interface {
	Card(ctx context.Context, id string) (model.Card, error)
}

// Config controls how a run is dispatched.
type Config struct {
	Workers   int
	RateLimit rate.Limit
	Timeout   time.Duration
	Progress  io.Writer // nil disables the progress bar
}

// ItemError is a lookup that did not produce a record.
type ItemError struct {
	Request model.PricingRequest
	Stage   string
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("line %d %s: %s: %v", e.Request.Line, e.Request.CardID(), e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the item later could succeed.
func (e *ItemError) Transient() bool {
	return cards.IsTransient(e.Err)
}

// Summary describes a finished run. Priced, Unpriced, NotFound and Failed
// add up to the number of items attempted.
type Summary struct {
	RunID    string
	Total    int
	Priced   int
	Unpriced int
	NotFound int
	Failed   int
	Records  []model.PriceRecord // in input order
	Failures []*ItemError        // in input order
	Duration time.Duration
}

// Attempted is the number of items that reached a result.
func (s Summary) Attempted() int {
	return s.Priced + s.Unpriced + s.NotFound + s.Failed
}

// Processor prices a batch of requests and records each result.
type Processor struct {
	fetcher  Fetcher
	recorder sink.Recorder
	pool     *concurrent.Pool
	timeout  time.Duration
	progress io.Writer
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewProcessor builds a processor. m may be nil.
func NewProcessor(f Fetcher, r sink.Recorder, cfg Config, m *metrics.Metrics, log zerolog.Logger) *Processor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if r == nil {
		r = sink.Discard{}
	}
	return &Processor{
		fetcher:  f,
		recorder: r,
		pool:     concurrent.NewPool(concurrent.Config{Workers: cfg.Workers, RateLimit: cfg.RateLimit}),
		timeout:  timeout,
		progress: cfg.Progress,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

type outcome struct {
	attempted bool
	result    string
	record    *model.PriceRecord
	failure   *ItemError
}

// Run prices every request. Item failures are collected in the summary and
// never stop the batch; the returned error is set only when ctx ends early.
func (p *Processor) Run(ctx context.Context, reqs []model.PricingRequest) (Summary, error) {
	start := p.now()
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Logger()

	log.Info().Int("cards", len(reqs)).Int("workers", p.pool.Workers()).Msg("pricing run started")

	bar := progress.New(p.progress, "Pricing cards", len(reqs), p.progress != nil)
	bar.Start()

	outcomes, err := concurrent.Map(ctx, p.pool, reqs, func(ctx context.Context, req model.PricingRequest) outcome {
		o := p.price(ctx, log, req)
		bar.Step(o.failure == nil)
		return o
	})
	bar.Finish()

	summary := Summary{RunID: runID, Total: len(reqs)}
	for _, o := range outcomes {
		if !o.attempted {
			continue
		}
		switch o.result {
		case metrics.ResultPriced:
			summary.Priced++
		case metrics.ResultUnpriced:
			summary.Unpriced++
		case metrics.ResultNotFound:
			summary.NotFound++
		default:
			summary.Failed++
		}
		if o.record != nil {
			summary.Records = append(summary.Records, *o.record)
		}
		if o.failure != nil {
			summary.Failures = append(summary.Failures, o.failure)
		}
	}
	summary.Duration = p.now().Sub(start)
	p.metrics.ObserveRun(summary.Duration)

	log.Info().
		Int("priced", summary.Priced).
		Int("unpriced", summary.Unpriced).
		Int("not_found", summary.NotFound).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("pricing run finished")

	if err != nil {
		return summary, fmt.Errorf("pricing run %s interrupted: %w", runID, err)
	}
	return summary, nil
}

func (p *Processor) price(ctx context.Context, log zerolog.Logger, req model.PricingRequest) outcome {
	id := req.CardID()
	log = log.With().Str("card_id", id).Str("set_code", req.SetCode).Logger()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	card, err := p.fetcher.Card(fetchCtx, id)
	cancel()
	if err != nil {
		result := metrics.ResultFailed
		if errors.Is(err, cards.ErrNotFound) {
			result = metrics.ResultNotFound
		}
		log.Warn().Err(err).Bool("transient", cards.IsTransient(err)).Msg("card lookup failed")
		p.metrics.ObserveLookup(result)
		return outcome{
			attempted: true,
			result:    result,
			failure:   &ItemError{Request: req, Stage: StageFetch, Err: err},
		}
	}

	price, source := prices.ExtractWithSource(card)
	name := card.Name
	if name == "" {
		name = req.Name
	}
	rec := model.PriceRecord{
		CardName:   name,
		CardID:     id,
		Number:     fmt.Sprint(req.Number),
		Price:      price,
		RecordedAt: p.now(),
	}

	if err := p.recorder.Record(ctx, rec); err != nil {
		log.Error().Err(err).Msg("recording price failed")
		p.metrics.ObserveLookup(metrics.ResultFailed)
		return outcome{
			attempted: true,
			result:    metrics.ResultFailed,
			failure:   &ItemError{Request: req, Stage: StageRecord, Err: err},
		}
	}

	result := metrics.ResultPriced
	if !prices.Priced(price) {
		result = metrics.ResultUnpriced
	} else {
		p.metrics.SetPrice(id, price)
	}
	p.metrics.ObserveLookup(result)
	log.Debug().Float64("price", price).Str("source", string(source)).Msg("card priced")

	return outcome{attempted: true, result: result, record: &rec}
}
