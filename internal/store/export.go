// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deck-engine/internal/session"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// ExportDeck is the exported form of one session's deck.
type ExportDeck struct {
	ID       string               `json:"id" yaml:"id"`
	State    session.State        `json:"state" yaml:"state"`
	Briefing types.Briefing       `json:"briefing" yaml:"briefing"`
	LOD      types.LOD            `json:"lod" yaml:"lod"`
	Subject  string               `json:"subject,omitempty" yaml:"subject,omitempty"`
	Cards    []types.ProducedCard `json:"cards" yaml:"cards"`
	Notices  []types.Notice       `json:"notices,omitempty" yaml:"notices,omitempty"`
	Usage    []UsageTotal         `json:"usage,omitempty" yaml:"usage,omitempty"`
}

// ExportYAML writes session id's deck to dir/<id>/deck.yaml and returns the
// path.
func (s *Store) ExportYAML(ctx context.Context, id string) (string, error) {
	deck, err := s.exportDeck(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(deck)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport(id, "deck.yaml", data)
}

// ExportJSON writes session id's deck to dir/<id>/deck.json and returns the
// path.
func (s *Store) ExportJSON(ctx context.Context, id string) (string, error) {
	deck, err := s.exportDeck(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport(id, "deck.json", data)
}

func (s *Store) exportDeck(ctx context.Context, id string) (ExportDeck, error) {
	snap, err := s.LoadSession(ctx, id)
	if err != nil {
		return ExportDeck{}, err
	}
	usage, err := s.UsageTotals(ctx, id)
	if err != nil {
		return ExportDeck{}, err
	}
	cards := snap.Cards
	if cards == nil {
		cards = []types.ProducedCard{}
	}
	return ExportDeck{
		ID:       snap.ID,
		State:    snap.State,
		Briefing: snap.Briefing,
		LOD:      snap.LOD,
		Subject:  snap.Subject,
		Cards:    cards,
		Notices:  snap.Notices,
		Usage:    usage,
	}, nil
}

func (s *Store) writeExport(id, name string, data []byte) (string, error) {
	dir := filepath.Join(s.dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
