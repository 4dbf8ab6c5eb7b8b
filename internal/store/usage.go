// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// RecordUsage stores one model response's token usage against sessionID.
func (s *Store) RecordUsage(ctx context.Context, sessionID string, u types.Usage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage (session_id, provider, model, input_tokens, output_tokens,
			cache_read_tokens, cache_write_tokens, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, u.Provider, u.Model, u.InputTokens, u.OutputTokens,
		u.CacheReadTokens, u.CacheWriteTokens, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// UsageSink returns a sink that records usage against the session whose ID
// id returns at the time of each call. Write failures are logged; usage
// accounting never fails a model call.
func (s *Store) UsageSink(id func() string, logger *slog.Logger) llm.UsageSink {
	if logger == nil {
		logger = slog.Default()
	}
	return llm.UsageSinkFunc(func(u types.Usage) {
		if err := s.RecordUsage(context.Background(), id(), u); err != nil {
			logger.Warn("usage not recorded", "error", err)
		}
	})
}

// UsageTotal sums the usage of one provider and model.
type UsageTotal struct {
	types.Usage `yaml:",inline"`
	Calls       int `json:"calls" yaml:"calls"`
}

// UsageTotals sums recorded usage per provider and model. An empty
// sessionID sums across all sessions.
func (s *Store) UsageTotals(ctx context.Context, sessionID string) ([]UsageTotal, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT provider, model, count(*), sum(input_tokens), sum(output_tokens),
			sum(cache_read_tokens), sum(cache_write_tokens)
		 FROM usage`)
	if sessionID != "" {
		qb.WriteString(` WHERE session_id = ?`)
		args = append(args, sessionID)
	}
	qb.WriteString(` GROUP BY provider, model ORDER BY provider, model`)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("summing usage: %w", err)
	}
	defer rows.Close()

	var out []UsageTotal
	for rows.Next() {
		var t UsageTotal
		if err := rows.Scan(&t.Provider, &t.Model, &t.Calls,
			&t.InputTokens, &t.OutputTokens, &t.CacheReadTokens, &t.CacheWriteTokens); err != nil {
			return nil, fmt.Errorf("scanning usage: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
