// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deck-engine/pkg/types"
)

func TestPipelineConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	loadedSecrets = map[string]string{"openai-api-key": "o1", "openai-api-key-secondary": "o2"}
	t.Cleanup(func() { loadedSecrets = nil })

	viper.Set("provider", "openai")
	viper.Set("batch_size", 6)
	viper.Set("concurrency", 2)
	viper.Set("max_tokens", 4000)
	viper.Set("store_dir", "out")

	cfg, err := pipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, types.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, defaultOpenAIModel, cfg.AI.Model)
	assert.Equal(t, []string{"o1", "o2"}, cfg.AI.APIKeys)
	assert.Equal(t, 6, cfg.Production.BatchSize)
	assert.Equal(t, 2, cfg.Production.Concurrency)
	assert.Equal(t, 4000, cfg.Production.MaxTokens)
	assert.Equal(t, 4000, cfg.Planning.MaxTokens)
	assert.Nil(t, cfg.Planning.Temperature)
	assert.Equal(t, "out", cfg.Store.Dir)

	viper.Set("temperature", 0.2)
	cfg, err = pipelineConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Production.Temperature)
	assert.Equal(t, 0.2, *cfg.Production.Temperature)
}

func TestPipelineConfig_UnknownProvider(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("provider", "mistral")
	_, err := pipelineConfig()
	assert.ErrorContains(t, err, `unknown provider "mistral"`)
}

func TestBriefingFromFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "briefing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audience: board\npresentation_type: update\nobjective: Explain Q3\n"), 0o644))

	cmd := &cobra.Command{}
	addBriefingFlags(cmd)
	require.NoError(t, cmd.Flags().Set("briefing", path))
	require.NoError(t, cmd.Flags().Set("tone", " formal "))

	b, err := briefingFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, types.Briefing{Audience: "board", PresentationType: "update", Objective: "Explain Q3", Tone: "formal"}, b)

	empty := &cobra.Command{}
	addBriefingFlags(empty)
	_, err = briefingFromFlags(empty)
	assert.ErrorContains(t, err, "audience is required")
}
