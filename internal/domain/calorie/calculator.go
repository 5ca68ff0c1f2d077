package calorie

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput is returned when a biometric is missing, zero or negative,
// or when gender or activity level is not recognized.
var ErrInvalidInput = errors.New("invalid calorie input")

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type ActivityLevel string

const (
	ActivityRest     ActivityLevel = "rest"
	ActivityLight    ActivityLevel = "light"
	ActivityModerate ActivityLevel = "moderate"
	ActivityHeavy    ActivityLevel = "heavy"
)

// Input holds the biometrics a calculation is run against.
type Input struct {
	Gender        Gender        `json:"gender"`
	HeightCm      float64       `json:"height_cm"`
	WeightKg      float64       `json:"weight_kg"`
	Age           int           `json:"age"`
	ActivityLevel ActivityLevel `json:"activity_level"`
}

// Result is the step-by-step breakdown of a calculation. Every field except
// TotalRounded is rounded to two decimals.
type Result struct {
	IdealBodyWeight    float64 `json:"ideal_body_weight"`
	BasalRate          float64 `json:"basal_rate"`
	AgeCorrection      float64 `json:"age_correction"`
	ActivityCorrection float64 `json:"activity_correction"`
	WeightCorrection   float64 `json:"weight_correction"`
	Total              float64 `json:"total"`
	TotalRounded       int     `json:"total_rounded"`
	BMI                float64 `json:"bmi"`
}

var activityFactors = map[ActivityLevel]float64{
	ActivityRest:     0.10,
	ActivityLight:    0.20,
	ActivityModerate: 0.30,
	ActivityHeavy:    0.50,
}

var basalFactors = map[Gender]float64{
	GenderMale:   30,
	GenderFemale: 25,
}

// Brackets are inclusive. Age 70 falls between the last two and gets no correction.
var ageBrackets = []struct {
	min, max int
	factor   float64
}{
	{40, 59, -0.05},
	{60, 69, -0.10},
	{71, math.MaxInt, -0.20},
}

const (
	underweightBMI = 18.5
	overweightBMI  = 25.0
	bmiCorrection  = 0.20
)

// ParseGender accepts the English and Indonesian spellings used by the forms.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "laki-laki", "l":
		return GenderMale, true
	case "female", "f", "perempuan", "p":
		return GenderFemale, true
	}
	return "", false
}

// ParseActivityLevel normalizes case and surrounding whitespace.
func ParseActivityLevel(s string) (ActivityLevel, bool) {
	a := ActivityLevel(strings.ToLower(strings.TrimSpace(s)))
	_, ok := activityFactors[a]
	return a, ok
}

// Compute runs the ideal-body-weight based caloric requirement formula.
func Compute(in Input) (*Result, error) {
	if !finite(in.HeightCm) || !finite(in.WeightKg) {
		return nil, fmt.Errorf("%w: height and weight must be finite numbers", ErrInvalidInput)
	}
	if in.HeightCm <= 0 || in.WeightKg <= 0 || in.Age <= 0 {
		return nil, fmt.Errorf("%w: height, weight and age must be greater than zero", ErrInvalidInput)
	}
	gender, ok := ParseGender(string(in.Gender))
	if !ok {
		return nil, fmt.Errorf("%w: unknown gender %q", ErrInvalidInput, in.Gender)
	}
	activity, ok := ParseActivityLevel(string(in.ActivityLevel))
	if !ok {
		return nil, fmt.Errorf("%w: unknown activity level %q", ErrInvalidInput, in.ActivityLevel)
	}

	bbi := idealBodyWeight(gender, in.HeightCm)
	kkb := bbi * basalFactors[gender]
	ageCorr := ageFactor(in.Age) * kkb
	activityCorr := activityFactors[activity] * kkb

	heightM := in.HeightCm / 100
	bmi := in.WeightKg / (heightM * heightM)
	var weightCorr float64
	switch {
	case bmi < underweightBMI:
		weightCorr = bmiCorrection * kkb
	case bmi > overweightBMI:
		weightCorr = -bmiCorrection * kkb
	}

	total := kkb + ageCorr + activityCorr + weightCorr
	return &Result{
		IdealBodyWeight:    round2(bbi),
		BasalRate:          round2(kkb),
		AgeCorrection:      round2(ageCorr),
		ActivityCorrection: round2(activityCorr),
		WeightCorrection:   round2(weightCorr),
		Total:              round2(total),
		TotalRounded:       int(math.Round(total)),
		BMI:                round2(bmi),
	}, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// The male threshold is strict and the female one inclusive.
func idealBodyWeight(g Gender, heightCm float64) float64 {
	multiplier := 1.0
	switch g {
	case GenderMale:
		if heightCm > 160 {
			multiplier = 0.9
		}
	case GenderFemale:
		if heightCm >= 150 {
			multiplier = 0.9
		}
	}
	return (heightCm - 100) * multiplier
}

func ageFactor(age int) float64 {
	for _, b := range ageBrackets {
		if age >= b.min && age <= b.max {
			return b.factor
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
