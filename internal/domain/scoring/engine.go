// Package scoring totals questionnaire answers and resolves the total against
// an ordered list of result tiers. It holds no state and is safe for
// concurrent use.
package scoring

import "fmt"

// Score validates answers against def, sums the selected option scores and
// resolves the total to the first tier containing it. Any structural error
// aborts the whole evaluation.
func Score(def Definition, answers []Answer) (*Outcome, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var total float64
	for i, a := range answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(def.Questions) {
			return nil, fmt.Errorf("%w: answer %d references question %d, definition has %d",
				ErrInvalidAnswerIndex, i, a.QuestionIndex, len(def.Questions))
		}
		q := def.Questions[a.QuestionIndex]

		switch q.Kind {
		case KindSingleChoice:
			if a.Selected == nil {
				continue
			}
			opt, ok := findOption(q, a.Selected.Text)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not an option of question %d",
					ErrInvalidOption, a.Selected.Text, a.QuestionIndex)
			}
			total += opt.Score
		case KindMultiChoice:
			for _, sel := range a.SelectedOptions {
				opt, ok := findOption(q, sel.Text)
				if !ok {
					return nil, fmt.Errorf("%w: %q is not an option of question %d",
						ErrInvalidOption, sel.Text, a.QuestionIndex)
				}
				total += opt.Score
			}
		case KindFreeText:
		default:
			return nil, fmt.Errorf("%w: question %d has unknown type %q",
				ErrMalformedQuestion, a.QuestionIndex, q.Kind)
		}
	}

	return &Outcome{TotalScore: total, Tier: ResolveTier(def.Tiers, total)}, nil
}

// ResolveTier scans tiers in order and returns a copy of the first one whose
// range contains score, or nil.
func ResolveTier(tiers []Tier, score float64) *Tier {
	for _, t := range tiers {
		if t.Contains(score) {
			match := t
			return &match
		}
	}
	return nil
}

// Options are matched by exact text; with duplicate texts the first wins.
func findOption(q Question, text string) (Option, bool) {
	for _, o := range q.Options {
		if o.Text == text {
			return o, true
		}
	}
	return Option{}, false
}
