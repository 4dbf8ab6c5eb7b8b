// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package producer turns an approved plan into finished card text. The plan
// is cut into batches that are produced with bounded concurrency; each batch
// response is validated on its own, so one bad batch never discards another.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdiddy/deck-engine/internal/batch"
	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/internal/prompt"
	"github.com/pdiddy/deck-engine/pkg/types"
)

const defaultMaxTokens = 16000

// Notifier receives non-fatal notices as batches complete.
type Notifier interface {
	Notify(types.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(types.Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n types.Notice) { f(n) }

// Job is one production run over an approved plan.
type Job struct {
	Briefing  types.Briefing
	Documents []types.SourceDocument
	LOD       types.LOD
	Subject   string

	// Plan holds the approved cards, numbered 1..N.
	Plan types.Plan

	// Done holds cards produced by an earlier run. They are not produced
	// again and seed the summary of covered material.
	Done []types.ProducedCard
}

// BatchResult reports one finished batch.
type BatchResult struct {
	Index       int
	First, Last int
	Cards       []types.ProducedCard
	Notices     []types.Notice
	Err         error
}

// BatchFailure records a batch that was issued and failed.
type BatchFailure struct {
	Batch       int
	First, Last int
	Err         error
}

func (f BatchFailure) Error() string {
	return fmt.Sprintf("batch %d (cards %d-%d): %v", f.Batch+1, f.First, f.Last, f.Err)
}

func (f BatchFailure) Unwrap() error { return f.Err }

// Outcome aggregates a production run.
type Outcome struct {
	// Cards holds every produced card, including Job.Done, sorted by number.
	Cards []types.ProducedCard

	Failures []BatchFailure

	// Cancelled is set when the context ended the run early. Batches cut
	// off by cancellation are not failures.
	Cancelled bool

	Notices []types.Notice
}

// Complete reports whether every batch succeeded.
func (o Outcome) Complete() bool {
	return len(o.Failures) == 0 && !o.Cancelled
}

// Err joins the batch failures, or returns nil when there are none.
func (o Outcome) Err() error {
	errs := make([]error, 0, len(o.Failures))
	for _, f := range o.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Producer runs production jobs through a model Caller.
type Producer struct {
	caller      llm.Caller
	settings    prompt.Settings
	batchSize   int
	concurrency int
	notifier    Notifier
	logger      *slog.Logger
}

// New returns a Producer. Zero config values take the defaults: 12 cards
// per batch, 3 batches in flight, 16000 output tokens per batch.
func New(caller llm.Caller, cfg types.ProductionConfig, notifier Notifier, logger *slog.Logger) *Producer {
	p := &Producer{
		caller:      caller,
		settings:    prompt.Settings{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature},
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		notifier:    notifier,
		logger:      logger,
	}
	if p.settings.MaxTokens <= 0 {
		p.settings.MaxTokens = defaultMaxTokens
	}
	if p.batchSize <= 0 {
		p.batchSize = batch.DefaultSize
	}
	if p.concurrency <= 0 {
		p.concurrency = batch.DefaultConcurrency
	}
	if p.notifier == nil {
		p.notifier = NotifierFunc(func(types.Notice) {})
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// ledger collects completed cards. The covered summary is built only from
// what it holds, so in-flight batches never leak into another prompt.
type ledger struct {
	mu      sync.Mutex
	cards   []types.ProducedCard
	notices []types.Notice
}

func (l *ledger) add(cards []types.ProducedCard, notices []types.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cards = append(l.cards, cards...)
	l.notices = append(l.notices, notices...)
}

func (l *ledger) snapshot() []types.ProducedCard {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.ProducedCard(nil), l.cards...)
}

// Produce runs job. onBatch, when non-nil, is called once per issued batch
// as it finishes; calls are serialised. Produce itself never fails: failed
// batches are listed in the outcome next to the cards that succeeded.
func (p *Producer) Produce(ctx context.Context, job Job, onBatch func(BatchResult)) Outcome {
	done := make(map[int]bool, len(job.Done))
	for _, c := range job.Done {
		done[c.Number] = true
	}
	var remaining types.Plan
	for _, c := range job.Plan.Cards {
		if !done[c.Number] {
			remaining.Cards = append(remaining.Cards, c)
		}
	}

	batches := batch.Split(remaining, p.batchSize)
	l := &ledger{cards: append([]types.ProducedCard(nil), job.Done...)}
	var emit sync.Mutex

	p.logger.Info("producing deck",
		"cards", len(remaining.Cards),
		"skipped", len(job.Done),
		"batches", len(batches),
		"concurrency", p.concurrency)

	errs := batch.Run(ctx, len(batches), p.concurrency, func(ctx context.Context, i int) error {
		res := p.produceBatch(ctx, job, i, batches[i], l.snapshot())
		if res.Err == nil {
			l.add(res.Cards, res.Notices)
			for _, n := range res.Notices {
				p.notifier.Notify(n)
			}
		}
		if onBatch != nil {
			emit.Lock()
			onBatch(res)
			emit.Unlock()
		}
		return res.Err
	})

	var out Outcome
	for i, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, batch.ErrNotStarted) || llm.IsCancelled(err) {
			out.Cancelled = true
			continue
		}
		cards := batches[i].Cards
		out.Failures = append(out.Failures, BatchFailure{
			Batch: i,
			First: cards[0].Number,
			Last:  cards[len(cards)-1].Number,
			Err:   err,
		})
	}
	if ctx.Err() != nil {
		out.Cancelled = true
	}

	out.Cards = l.cards
	types.SortCards(out.Cards)
	out.Notices = l.notices
	return out
}

func (p *Producer) produceBatch(ctx context.Context, job Job, i int, b types.Plan, covered []types.ProducedCard) BatchResult {
	first, last := b.Cards[0].Number, b.Cards[len(b.Cards)-1].Number
	res := BatchResult{Index: i, First: first, Last: last}
	log := p.logger.With("batch", i+1, "first", first, "last", last)

	req, err := prompt.ProduceRequest(prompt.ProduceInput{
		Briefing:  job.Briefing,
		Documents: job.Documents,
		LOD:       job.LOD,
		Subject:   job.Subject,
		Batch:     b,
		Covered:   prompt.CoveredSummary(covered, job.Plan),
		Settings:  p.settings,
	})
	if err != nil {
		res.Err = fmt.Errorf("building batch request: %w", err)
		return res
	}

	log.Info("requesting batch", "covered", len(covered))
	resp, err := p.caller.Call(ctx, req)
	if err != nil {
		if !llm.IsCancelled(err) {
			log.Warn("batch call failed", "error", err)
		}
		res.Err = err
		return res
	}

	cards, notices, err := Validate(resp.Text, b, job.LOD)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) && resp.Truncated() {
			se.Problems = append(se.Problems, "response was cut off at the token limit")
		}
		log.Warn("batch rejected", "error", err)
		res.Err = err
		return res
	}

	log.Info("batch ready", "cards", len(cards), "notices", len(notices))
	res.Cards = cards
	res.Notices = notices
	return res
}
