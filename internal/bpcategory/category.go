package bpcategory

import "fmt"

// Category is the clinical severity label stored with every reading.
type Category string

const (
	HypertensiveCrisis Category = "Hypertensive Crisis"
	Stage2Hypertension Category = "Stage 2 Hypertension"
	Stage1Hypertension Category = "Stage 1 Hypertension"
	Elevated           Category = "Elevated"
	Normal             Category = "Normal"
	Low                Category = "Low"
	Uncategorized      Category = "Uncategorized"
)

var ordered = []Category{
	HypertensiveCrisis,
	Stage2Hypertension,
	Stage1Hypertension,
	Elevated,
	Normal,
	Low,
	Uncategorized,
}

// Classify maps a systolic/diastolic pair (mmHg) to its category.
// Rules are evaluated top to bottom and the first match wins; the order is part of
// the contract. Inputs are not validated.
func Classify(systolic, diastolic int) Category {
	switch {
	case systolic > 180 || diastolic > 120:
		return HypertensiveCrisis
	case systolic >= 140 || diastolic >= 90:
		return Stage2Hypertension
	case (systolic >= 130 && systolic <= 139) || (diastolic >= 80 && diastolic <= 89):
		return Stage1Hypertension
	case systolic >= 120 && systolic <= 129 && diastolic < 80:
		return Elevated
	case systolic < 120 && diastolic < 80:
		return Normal
	case systolic < 90 || diastolic < 60:
		return Low
	default:
		return Uncategorized
	}
}

// Categories returns every category, most severe first.
func Categories() []Category {
	out := make([]Category, len(ordered))
	copy(out, ordered)
	return out
}

func (c Category) String() string { return string(c) }

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	for _, v := range ordered {
		if v == c {
			return true
		}
	}
	return false
}

// Severity ranks categories for threshold checks: Low is 0, Hypertensive Crisis is 5.
// Uncategorized and unknown values rank -1.
func (c Category) Severity() int {
	switch c {
	case HypertensiveCrisis:
		return 5
	case Stage2Hypertension:
		return 4
	case Stage1Hypertension:
		return 3
	case Elevated:
		return 2
	case Normal:
		return 1
	case Low:
		return 0
	default:
		return -1
	}
}

// AtLeast reports whether c is as severe as threshold or worse.
func (c Category) AtLeast(threshold Category) bool {
	s := c.Severity()
	return s >= 0 && s >= threshold.Severity()
}

// ParseCategory returns the category whose label equals s.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown blood pressure category: %q", s)
	}
	return c, nil
}
