//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Deck groups targets that run the built CLI against the local workspace.
type Deck mg.Namespace

const deckBin = "./" + binDir + "/" + binName

// Status shows the latest session.
func (Deck) Status() error {
	mg.Deps(Build)
	return sh.RunV(deckBin, "status")
}

// Sessions lists all stored sessions.
func (Deck) Sessions() error {
	mg.Deps(Build)
	return sh.RunV(deckBin, "status", "--list")
}

// Export writes the latest session's deck as Markdown and YAML.
func (Deck) Export() error {
	mg.Deps(Build)
	if err := sh.RunV(deckBin, "export", "--format", "markdown"); err != nil {
		return err
	}
	return sh.RunV(deckBin, "export", "--format", "yaml")
}

// Usage sums token usage across all sessions.
func (Deck) Usage() error {
	mg.Deps(Build)
	return sh.RunV(deckBin, "usage", "--all")
}
