// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pdiddy/deck-engine/internal/deck"
	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/internal/planner"
	"github.com/pdiddy/deck-engine/internal/producer"
	"github.com/pdiddy/deck-engine/internal/secrets"
	"github.com/pdiddy/deck-engine/internal/session"
	"github.com/pdiddy/deck-engine/internal/store"
	"github.com/pdiddy/deck-engine/pkg/types"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4.1"
)

// pipelineConfig assembles stage configuration from flags, environment,
// and the config file.
func pipelineConfig() (types.PipelineConfig, error) {
	provider := types.Provider(viper.GetString("provider"))
	model := viper.GetString("model")
	switch provider {
	case types.ProviderAnthropic:
		if model == "" {
			model = defaultAnthropicModel
		}
	case types.ProviderOpenAI:
		if model == "" {
			model = defaultOpenAIModel
		}
	default:
		return types.PipelineConfig{}, fmt.Errorf("unknown provider %q: use anthropic or openai", provider)
	}

	var temperature *float64
	if viper.IsSet("temperature") {
		temperature = llm.Temp(viper.GetFloat64("temperature"))
	}
	maxTokens := viper.GetInt("max_tokens")

	return types.PipelineConfig{
		AI: types.AIConfig{
			Provider:   provider,
			Model:      model,
			BaseURL:    viper.GetString("base_url"),
			APIKeys:    secrets.Credentials(loadedSecrets, provider),
			MaxRetries: viper.GetInt("max_retries"),
			Timeout:    viper.GetDuration("timeout"),
		},
		Planning: types.PlanningConfig{
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Production: types.ProductionConfig{
			BatchSize:   viper.GetInt("batch_size"),
			Concurrency: viper.GetInt("concurrency"),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Store:   types.StoreConfig{Dir: viper.GetString("store_dir")},
		DocsDir: viper.GetString("docs_dir"),
	}, nil
}

// workspace bundles what one CLI invocation works with: configuration, the
// session store, and the session being operated on.
type workspace struct {
	cfg    types.PipelineConfig
	store  *store.Store
	logger *slog.Logger
	sess   *session.Session
}

func openWorkspace() (*workspace, error) {
	cfg, err := pipelineConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	return &workspace{cfg: cfg, store: st, logger: slog.Default()}, nil
}

func (w *workspace) close() {
	w.store.Close()
}

// sessionID names the session usage is recorded against.
func (w *workspace) sessionID() string {
	if w.sess == nil {
		return ""
	}
	return w.sess.ID()
}

// stages builds the planner and producer over a fresh model client.
func (w *workspace) stages() (session.Planner, session.Producer, error) {
	var backend llm.Backend
	switch w.cfg.AI.Provider {
	case types.ProviderOpenAI:
		backend = llm.NewOpenAIBackend(w.cfg.AI)
	default:
		backend = llm.NewAnthropicBackend(w.cfg.AI)
	}

	client, err := llm.New(backend, llm.Config{
		Model:       w.cfg.AI.Model,
		Credentials: w.cfg.AI.APIKeys,
		MaxRetries:  w.cfg.AI.MaxRetries,
		UsageSink:   w.store.UsageSink(w.sessionID, w.logger),
		Logger:      w.logger,
	})
	if errors.Is(err, llm.ErrNoCredentials) {
		return nil, nil, fmt.Errorf("no %s API key: add a %s file to %s",
			w.cfg.AI.Provider, secrets.KeyName(w.cfg.AI.Provider), viper.GetString("secrets_dir"))
	}
	if err != nil {
		return nil, nil, err
	}
	w.logger.Debug("model client ready", "client", client.String())

	notify := producer.NotifierFunc(func(n types.Notice) {
		w.logger.Warn("card notice", "card", n.Card, "message", n.Message)
	})
	return planner.New(client, w.cfg.Planning, w.logger),
		producer.New(client, w.cfg.Production, notify, w.logger),
		nil
}

func (w *workspace) options() []session.Option {
	return []session.Option{
		session.WithLogger(w.logger),
		session.WithBatchObserver(func(r producer.BatchResult) {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "  batch %d (cards %d-%d) failed: %v\n", r.Index+1, r.First, r.Last, r.Err)
				return
			}
			fmt.Fprintf(os.Stderr, "  batch %d done: cards %d-%d\n", r.Index+1, r.First, r.Last)
		}),
	}
}

// newSession starts an empty session wired to the model.
func (w *workspace) newSession() error {
	p, prod, err := w.stages()
	if err != nil {
		return err
	}
	w.sess = session.New(p, prod, w.options()...)
	return nil
}

// loadSession restores the --session session, or the latest one. With
// withModel false the session can be inspected and edited but not run.
func (w *workspace) loadSession(ctx context.Context, withModel bool) error {
	var (
		snap session.Snapshot
		err  error
	)
	if id := viper.GetString("session"); id != "" {
		snap, err = w.store.LoadSession(ctx, id)
	} else {
		snap, err = w.store.LatestSession(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no session found: start one with deck-engine plan")
	}
	if err != nil {
		return err
	}

	var (
		p    session.Planner
		prod session.Producer
	)
	if withModel {
		// The usage sink resolves the session lazily, so stages can be
		// built before the session exists.
		if p, prod, err = w.stages(); err != nil {
			return err
		}
	}
	w.sess = session.Restore(snap, p, prod, w.options()...)
	return nil
}

// save persists the session. It runs after interrupted calls too, so it
// ignores the command context.
func (w *workspace) save() error {
	return w.store.SaveSession(context.Background(), w.sess.Snapshot())
}

func (w *workspace) sessionDir() string {
	return filepath.Join(w.store.Dir(), w.sess.ID())
}

func (w *workspace) reviewPath() string {
	return filepath.Join(w.sessionDir(), deck.ReviewFile)
}

// writeReview refreshes the session's review file from its current plan.
func (w *workspace) writeReview() (string, error) {
	plan, ok := w.sess.Plan()
	if !ok {
		return "", fmt.Errorf("session %s has no plan", w.sess.ID())
	}
	path := w.reviewPath()
	return path, deck.WriteReview(path, deck.NewReview(w.sess.ID(), plan, w.sess.AcceptAllRecommended()))
}

// applyReviewFile applies the session's review file if the reviewer has
// one on disk.
func (w *workspace) applyReviewFile() error {
	path := w.reviewPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	r, err := deck.LoadReview(path)
	if err != nil {
		return err
	}
	return deck.ApplyReview(w.sess, r)
}

// finish saves the session and reports the outcome of a model operation.
// An aborted run is reported as such rather than as a failure.
func (w *workspace) finish(state session.State, opErr error) error {
	if err := w.save(); err != nil {
		return err
	}
	fmt.Printf("Session %s: %s\n", w.sess.ID(), state)
	switch {
	case errors.Is(opErr, session.ErrAborted):
		fmt.Println("Aborted. Completed work was kept; run 'deck-engine status' to see it.")
		return nil
	case opErr != nil && state == session.StateError:
		info := w.sess.Error()
		if info != nil {
			fmt.Printf("Error (%s, %s): %s\n", info.Kind, info.Op, info.Message)
		}
		if info != nil && info.Op == session.OpPlan {
			fmt.Println("Run 'deck-engine reset', then 'deck-engine plan' to try again.")
		} else {
			fmt.Println("Run 'deck-engine retry' to try again.")
		}
		return opErr
	}
	return opErr
}
