package scoring

import (
	"encoding/json"
	"fmt"
	"math"
)

type QuestionKind string

const (
	KindSingleChoice QuestionKind = "multiple_choice"
	KindMultiChoice  QuestionKind = "multiple_selection"
	KindFreeText     QuestionKind = "text_input"
)

// Valid reports whether k is one of the known question kinds.
func (k QuestionKind) Valid() bool {
	switch k {
	case KindSingleChoice, KindMultiChoice, KindFreeText:
		return true
	}
	return false
}

// HasOptions reports whether questions of this kind are answered from a list.
func (k QuestionKind) HasOptions() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

type OptionKind string

const (
	OptionFixed  OptionKind = "fixed"
	OptionCustom OptionKind = "custom"
)

// Option is one selectable answer. Text is the matching key for submissions.
type Option struct {
	Text  string     `json:"text"`
	Score float64    `json:"score"`
	Kind  OptionKind `json:"type,omitempty"`
}

type Question struct {
	Text        string       `json:"text"`
	Kind        QuestionKind `json:"type"`
	Options     []Option     `json:"options,omitempty"`
	Placeholder string       `json:"placeholder,omitempty"`
}

// Tier maps an inclusive score range to an outcome.
type Tier struct {
	MinScore       int    `json:"min_score"`
	MaxScore       int    `json:"max_score"`
	Label          string `json:"label"`
	Recommendation string `json:"recommendation"`
}

// Contains reports whether score lies within the tier's inclusive bounds.
func (t Tier) Contains(score float64) bool {
	return float64(t.MinScore) <= score && score <= float64(t.MaxScore)
}

// UnmarshalJSON accepts the bound spellings min_score/max_score,
// minScore/maxScore and the legacy min/max, and requires integral bounds.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw struct {
		MinSnake       *float64 `json:"min_score"`
		MaxSnake       *float64 `json:"max_score"`
		MinCamel       *float64 `json:"minScore"`
		MaxCamel       *float64 `json:"maxScore"`
		MinLegacy      *float64 `json:"min"`
		MaxLegacy      *float64 `json:"max"`
		Label          string   `json:"label"`
		Recommendation string   `json:"recommendation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lo := firstNonNil(raw.MinSnake, raw.MinCamel, raw.MinLegacy)
	hi := firstNonNil(raw.MaxSnake, raw.MaxCamel, raw.MaxLegacy)
	if lo == nil || hi == nil {
		return fmt.Errorf("%w: tier %q is missing a score bound", ErrInvalidTier, raw.Label)
	}
	if *lo != math.Trunc(*lo) || *hi != math.Trunc(*hi) {
		return fmt.Errorf("%w: tier %q bounds must be integers", ErrInvalidTier, raw.Label)
	}
	t.MinScore = int(*lo)
	t.MaxScore = int(*hi)
	t.Label = raw.Label
	t.Recommendation = raw.Recommendation
	return nil
}

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// Definition is everything needed to score a questionnaire.
type Definition struct {
	Questions []Question `json:"questions"`
	Tiers     []Tier     `json:"result_tiers"`
}

// Validate checks the tier list. Overlapping tiers are allowed; the first
// match wins during resolution.
func (d Definition) Validate() error {
	for i, t := range d.Tiers {
		if t.MinScore > t.MaxScore {
			return fmt.Errorf("%w: tier %d (%q) has min_score %d > max_score %d",
				ErrInvalidTier, i, t.Label, t.MinScore, t.MaxScore)
		}
	}
	return nil
}

// Selection is a chosen option, referenced by its text. CustomText carries
// the respondent's elaboration for custom options and never affects scoring.
type Selection struct {
	Text       string `json:"text"`
	CustomText string `json:"custom_text,omitempty"`
}

// Answer is one submitted answer, correlated to a question by position.
type Answer struct {
	QuestionIndex   int         `json:"question_index"`
	Selected        *Selection  `json:"selected,omitempty"`
	SelectedOptions []Selection `json:"selected_options,omitempty"`
	Value           string      `json:"value,omitempty"`
}

// UnmarshalJSON rejects a fractional or missing question index with
// ErrInvalidAnswerIndex instead of a generic decode error.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw struct {
		QuestionIndex   *float64    `json:"question_index"`
		Selected        *Selection  `json:"selected"`
		SelectedOptions []Selection `json:"selected_options"`
		Value           string      `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.QuestionIndex == nil {
		return fmt.Errorf("%w: question_index is required", ErrInvalidAnswerIndex)
	}
	idx := *raw.QuestionIndex
	if idx != math.Trunc(idx) || math.Abs(idx) > math.MaxInt32 {
		return fmt.Errorf("%w: question_index %v is not an integer", ErrInvalidAnswerIndex, idx)
	}
	a.QuestionIndex = int(idx)
	a.Selected = raw.Selected
	a.SelectedOptions = raw.SelectedOptions
	a.Value = raw.Value
	return nil
}

// Outcome is the result of scoring a submission. Tier is nil when the total
// falls outside every configured range.
type Outcome struct {
	TotalScore float64 `json:"total_score"`
	Tier       *Tier   `json:"tier"`
}

// Resolved reports whether a tier matched.
func (o *Outcome) Resolved() bool {
	return o.Tier != nil
}
