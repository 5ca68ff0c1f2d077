package calorie

import (
	"errors"
	"math"
	"testing"
)

func TestCompute_FemaleModerateOverweight(t *testing.T) {
	r, err := Compute(Input{
		Gender:        GenderFemale,
		HeightCm:      150,
		WeightKg:      60,
		Age:           45,
		ActivityLevel: ActivityModerate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"ideal body weight", r.IdealBodyWeight, 45.00},
		{"basal rate", r.BasalRate, 1125.00},
		{"age correction", r.AgeCorrection, -56.25},
		{"activity correction", r.ActivityCorrection, 337.50},
		{"weight correction", r.WeightCorrection, -225.00},
		{"total", r.Total, 1181.25},
		{"bmi", r.BMI, 26.67},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if r.TotalRounded != 1181 {
		t.Errorf("TotalRounded = %d, want 1181", r.TotalRounded)
	}
}

func TestIdealBodyWeight_HeightThresholds(t *testing.T) {
	tests := []struct {
		gender Gender
		height float64
		want   float64
	}{
		{GenderMale, 160, 60},
		{GenderMale, 161, 54.9},
		{GenderMale, 150, 50},
		{GenderFemale, 150, 45},
		{GenderFemale, 149, 49},
		{GenderFemale, 170, 63},
	}
	for _, tt := range tests {
		got := round2(idealBodyWeight(tt.gender, tt.height))
		if got != tt.want {
			t.Errorf("idealBodyWeight(%s, %v) = %v, want %v", tt.gender, tt.height, got, tt.want)
		}
	}
}

func TestAgeFactor_Brackets(t *testing.T) {
	tests := []struct {
		age  int
		want float64
	}{
		{20, 0},
		{39, 0},
		{40, -0.05},
		{59, -0.05},
		{60, -0.10},
		{69, -0.10},
		{70, 0},
		{71, -0.20},
		{95, -0.20},
	}
	for _, tt := range tests {
		if got := ageFactor(tt.age); got != tt.want {
			t.Errorf("ageFactor(%d) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestCompute_MaleLightUnderweight(t *testing.T) {
	// bbi 60, kkb 1800, bmi 45/2.56 = 17.58 -> +20%
	r, err := Compute(Input{Gender: GenderMale, HeightCm: 160, WeightKg: 45, Age: 30, ActivityLevel: ActivityLight})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.IdealBodyWeight != 60 || r.BasalRate != 1800 {
		t.Errorf("bbi/kkb = %v/%v, want 60/1800", r.IdealBodyWeight, r.BasalRate)
	}
	if r.AgeCorrection != 0 {
		t.Errorf("AgeCorrection = %v, want 0", r.AgeCorrection)
	}
	if r.ActivityCorrection != 360 {
		t.Errorf("ActivityCorrection = %v, want 360", r.ActivityCorrection)
	}
	if r.WeightCorrection != 360 {
		t.Errorf("WeightCorrection = %v, want 360", r.WeightCorrection)
	}
	if r.TotalRounded != 2520 {
		t.Errorf("TotalRounded = %d, want 2520", r.TotalRounded)
	}
}

func TestCompute_NormalBMINoWeightCorrection(t *testing.T) {
	// 170cm / 65kg -> bmi 22.49
	r, err := Compute(Input{Gender: GenderMale, HeightCm: 170, WeightKg: 65, Age: 72, ActivityLevel: ActivityHeavy})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.WeightCorrection != 0 {
		t.Errorf("WeightCorrection = %v, want 0", r.WeightCorrection)
	}
	// bbi 63, kkb 1890, age -378, activity 945
	if r.AgeCorrection != -378 || r.ActivityCorrection != 945 {
		t.Errorf("corrections = %v/%v, want -378/945", r.AgeCorrection, r.ActivityCorrection)
	}
	if r.TotalRounded != 2457 {
		t.Errorf("TotalRounded = %d, want 2457", r.TotalRounded)
	}
}

func TestCompute_TotalRoundedMatchesUnroundedSum(t *testing.T) {
	inputs := []Input{
		{GenderFemale, 158, 49, 63, ActivityRest},
		{GenderMale, 175.5, 80.2, 41, ActivityModerate},
		{GenderFemale, 145, 70, 80, ActivityHeavy},
		{GenderMale, 158, 58, 18, ActivityLight},
	}
	for _, in := range inputs {
		r, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute(%+v): %v", in, err)
		}
		g, _ := ParseGender(string(in.Gender))
		bbi := idealBodyWeight(g, in.HeightCm)
		kkb := bbi * basalFactors[g]
		h := in.HeightCm / 100
		bmi := in.WeightKg / (h * h)
		w := 0.0
		if bmi < 18.5 {
			w = 0.2 * kkb
		} else if bmi > 25 {
			w = -0.2 * kkb
		}
		want := int(math.Round(kkb + ageFactor(in.Age)*kkb + activityFactors[in.ActivityLevel]*kkb + w))
		if r.TotalRounded != want {
			t.Errorf("Compute(%+v).TotalRounded = %d, want %d", in, r.TotalRounded, want)
		}
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	base := Input{Gender: GenderFemale, HeightCm: 150, WeightKg: 60, Age: 45, ActivityLevel: ActivityModerate}
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"zero height", func(in *Input) { in.HeightCm = 0 }},
		{"zero weight", func(in *Input) { in.WeightKg = 0 }},
		{"zero age", func(in *Input) { in.Age = 0 }},
		{"negative height", func(in *Input) { in.HeightCm = -150 }},
		{"negative weight", func(in *Input) { in.WeightKg = -1 }},
		{"negative age", func(in *Input) { in.Age = -3 }},
		{"NaN height", func(in *Input) { in.HeightCm = math.NaN() }},
		{"infinite height", func(in *Input) { in.HeightCm = math.Inf(1) }},
		{"NaN weight", func(in *Input) { in.WeightKg = math.NaN() }},
		{"infinite weight", func(in *Input) { in.WeightKg = math.Inf(-1) }},
		{"unknown gender", func(in *Input) { in.Gender = "other" }},
		{"unknown activity", func(in *Input) { in.ActivityLevel = "extreme" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := Compute(in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCompute_AcceptsLocalizedSpellings(t *testing.T) {
	r, err := Compute(Input{Gender: "Perempuan", HeightCm: 150, WeightKg: 60, Age: 45, ActivityLevel: "Moderate"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TotalRounded != 1181 {
		t.Errorf("TotalRounded = %d, want 1181", r.TotalRounded)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	in := Input{Gender: GenderMale, HeightCm: 172.3, WeightKg: 91.7, Age: 64, ActivityLevel: ActivityLight}
	a, err := Compute(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Compute(in)
	if *a != *b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}
