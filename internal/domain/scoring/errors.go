package scoring

import "errors"

var (
	ErrInvalidAnswerIndex = errors.New("invalid answer index")
	ErrMalformedQuestion  = errors.New("malformed question")
	ErrInvalidOption      = errors.New("invalid option")
	ErrInvalidTier        = errors.New("invalid result tier")
)

// Code returns a stable machine-readable identifier for a scoring error, or
// an empty string if err is not one.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAnswerIndex):
		return "invalid_answer_index"
	case errors.Is(err, ErrMalformedQuestion):
		return "malformed_question"
	case errors.Is(err, ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, ErrInvalidTier):
		return "invalid_result_tier"
	}
	return ""
}
