// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SourceRef cites where in a document a card's material comes from. One of
// Heading, Section, or FallbackDescription locates the passage.
type SourceRef struct {
	// Document is the SourceDocument ID.
	Document string `json:"document" yaml:"document"`

	Heading             string `json:"heading,omitempty" yaml:"heading,omitempty"`
	Section             string `json:"section,omitempty" yaml:"section,omitempty"`
	FallbackDescription string `json:"fallback_description,omitempty" yaml:"fallback_description,omitempty"`
}

// Locator returns the passage locator, preferring heading over section over
// the fallback description.
func (r SourceRef) Locator() string {
	switch {
	case r.Heading != "":
		return r.Heading
	case r.Section != "":
		return r.Section
	}
	return r.FallbackDescription
}

// Guidance carries per-card writing instructions.
type Guidance struct {
	Emphasis string `json:"emphasis" yaml:"emphasis"`
	Tone     string `json:"tone" yaml:"tone"`
	Exclude  string `json:"exclude" yaml:"exclude"`
}

// PlannedCard is one card of a plan.
type PlannedCard struct {
	// Number is the 1-based position of the card in the deck.
	Number int `json:"number" yaml:"number"`

	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Sources     []SourceRef `json:"sources" yaml:"sources"`

	// KeyDataPoints are verbatim facts or quotes the produced text must carry.
	KeyDataPoints []string `json:"key_data_points,omitempty" yaml:"key_data_points,omitempty"`

	Guidance Guidance `json:"guidance" yaml:"guidance"`

	// WordTarget optionally narrows the LOD word range for this card.
	WordTarget int `json:"word_target,omitempty" yaml:"word_target,omitempty"`

	CrossReferences string `json:"cross_references,omitempty" yaml:"cross_references,omitempty"`

	// Excluded is the reviewer's toggle; excluded cards are dropped on approval.
	Excluded bool `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// Question is a clarifying question raised by the planner.
type Question struct {
	ID          string `json:"id" yaml:"id"`
	Text        string `json:"text" yaml:"text"`
	Recommended string `json:"recommended,omitempty" yaml:"recommended,omitempty"`
	Answer      string `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Plan is the ordered set of planned cards reviewed before production. Card
// order is the deck order.
type Plan struct {
	Cards          []PlannedCard `json:"cards" yaml:"cards"`
	Questions      []Question    `json:"questions,omitempty" yaml:"questions,omitempty"`
	GeneralComment string        `json:"general_comment,omitempty" yaml:"general_comment,omitempty"`
}

// Clone returns a deep copy so reviewer edits never alias a stored plan.
func (p Plan) Clone() Plan {
	out := Plan{GeneralComment: p.GeneralComment}
	if p.Cards != nil {
		out.Cards = make([]PlannedCard, len(p.Cards))
		for i, c := range p.Cards {
			c.Sources = append([]SourceRef(nil), c.Sources...)
			c.KeyDataPoints = append([]string(nil), c.KeyDataPoints...)
			out.Cards[i] = c
		}
	}
	if p.Questions != nil {
		out.Questions = append([]Question(nil), p.Questions...)
	}
	return out
}

// Included returns the cards not excluded by the reviewer, renumbered
// contiguously from 1 in their original order.
func (p Plan) Included() Plan {
	cp := p.Clone()
	out := Plan{Questions: cp.Questions, GeneralComment: cp.GeneralComment}
	for _, c := range cp.Cards {
		if c.Excluded {
			continue
		}
		c.Number = len(out.Cards) + 1
		out.Cards = append(out.Cards, c)
	}
	return out
}

// Card returns the card with the given number.
func (p Plan) Card(number int) (PlannedCard, bool) {
	for _, c := range p.Cards {
		if c.Number == number {
			return c, true
		}
	}
	return PlannedCard{}, false
}

// Feedback is the reviewer's draft sent to the planner on revision.
type Feedback struct {
	// Excluded lists card numbers the reviewer switched off.
	Excluded []int `json:"excluded,omitempty" yaml:"excluded,omitempty"`

	// Answers maps question IDs to the reviewer's answers.
	Answers map[string]string `json:"answers,omitempty" yaml:"answers,omitempty"`

	// AcceptAllRecommended accepts the recommended answer for every
	// question the reviewer left blank.
	AcceptAllRecommended bool `json:"accept_all_recommended,omitempty" yaml:"accept_all_recommended,omitempty"`

	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// IsEmpty reports whether the feedback carries no reviewer input.
func (f Feedback) IsEmpty() bool {
	return len(f.Excluded) == 0 && len(f.Answers) == 0 && !f.AcceptAllRecommended && f.Comment == ""
}
