// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data model shared by the planning and production
// stages: briefings, source documents, plans, produced cards, and the static
// level-of-detail profiles.
package types

import "fmt"

// Briefing describes the deck the user wants. It is supplied once when a
// session starts and never mutated afterwards.
type Briefing struct {
	// Audience is who the deck is written for (e.g. "board of directors").
	Audience string `json:"audience" yaml:"audience"`

	// PresentationType names the kind of deck (e.g. "training", "pitch").
	PresentationType string `json:"presentation_type" yaml:"presentation_type"`

	// Objective is what the deck must achieve.
	Objective string `json:"objective" yaml:"objective"`

	// Tone is an optional voice hint (e.g. "formal").
	Tone string `json:"tone,omitempty" yaml:"tone,omitempty"`

	// Focus optionally narrows the material the deck should emphasise.
	Focus string `json:"focus,omitempty" yaml:"focus,omitempty"`
}

// Validate reports the first missing required field.
func (b Briefing) Validate() error {
	switch {
	case b.Audience == "":
		return fmt.Errorf("briefing: audience is required")
	case b.PresentationType == "":
		return fmt.Errorf("briefing: presentation type is required")
	case b.Objective == "":
		return fmt.Errorf("briefing: objective is required")
	}
	return nil
}

// SourceDocument is one document of the working set. Either Content holds
// the normalized text, or ProviderFileRef names a file already uploaded to
// the model provider.
type SourceDocument struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// Content is the inline document text.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// ProviderFileRef is an opaque provider-side file identifier.
	ProviderFileRef string `json:"provider_file_ref,omitempty" yaml:"provider_file_ref,omitempty"`
}

// Inline reports whether the document carries its text rather than a
// provider file reference.
func (d SourceDocument) Inline() bool {
	return d.ProviderFileRef == ""
}

// LOD is the level of detail of a deck.
type LOD string

const (
	LODExecutive LOD = "executive"
	LODStandard  LOD = "standard"
	LODDetailed  LOD = "detailed"
)

// ParseLOD converts user input into an LOD, defaulting empty input to
// LODStandard.
func ParseLOD(s string) (LOD, error) {
	switch LOD(s) {
	case "":
		return LODStandard, nil
	case LODExecutive, LODStandard, LODDetailed:
		return LOD(s), nil
	}
	return "", fmt.Errorf("unknown level of detail %q: use executive, standard, or detailed", s)
}

// LODProfile is the static word-count range and formatting policy for one
// level of detail.
type LODProfile struct {
	WordCountMin int
	WordCountMax int

	// MaxHeadingLevel is the deepest Markdown heading allowed in card
	// content; 0 forbids headings.
	MaxHeadingLevel int

	AllowTables      bool
	AllowBlockquotes bool

	// MaxBullets caps list items per card; 0 means no cap.
	MaxBullets int
}

var lodProfiles = map[LOD]LODProfile{
	LODExecutive: {
		WordCountMin:    40,
		WordCountMax:    120,
		MaxHeadingLevel: 0,
		MaxBullets:      5,
	},
	LODStandard: {
		WordCountMin:     120,
		WordCountMax:     250,
		MaxHeadingLevel:  3,
		AllowTables:      true,
		AllowBlockquotes: true,
		MaxBullets:       8,
	},
	LODDetailed: {
		WordCountMin:     250,
		WordCountMax:     450,
		MaxHeadingLevel:  4,
		AllowTables:      true,
		AllowBlockquotes: true,
	},
}

// ProfileFor returns the profile of lod. Unknown values fall back to the
// standard profile.
func ProfileFor(lod LOD) LODProfile {
	if p, ok := lodProfiles[lod]; ok {
		return p
	}
	return lodProfiles[LODStandard]
}

// InRange reports whether n lies within the profile's word-count range.
func (p LODProfile) InRange(n int) bool {
	return n >= p.WordCountMin && n <= p.WordCountMax
}
