package scoring

import "math"

// DecayFunc maps a signal's age in whole days to a multiplier in [0,1].
// Supplied by configuration; expected (not enforced) to be monotonically
// non-increasing in age.
type DecayFunc func(ageDays int) float64

// NoDecay returns a decay function that never shrinks contributions.
func NoDecay() DecayFunc {
	return func(int) float64 { return 1.0 }
}

// ExponentialDecay returns a half-life decay: 2^(-age/halfLifeDays),
// never below floor. A non-positive half-life falls back to 365 days.
func ExponentialDecay(halfLifeDays int, floor float64) DecayFunc {
	if halfLifeDays <= 0 {
		halfLifeDays = 365
	}
	if floor < 0 {
		floor = 0
	}
	return func(ageDays int) float64 {
		if ageDays <= 0 {
			return 1.0
		}
		decayed := math.Pow(2, -float64(ageDays)/float64(halfLifeDays))
		if decayed < floor {
			return floor
		}
		return decayed
	}
}

// DecayStep is one bracket of a step decay table: signals up to MaxAgeDays
// old keep Factor of their value.
type DecayStep struct {
	MaxAgeDays int
	Factor     float64
}

// StepDecay returns a bracketed decay function. Steps must be ordered by
// ascending MaxAgeDays; ages beyond the last step use floor.
func StepDecay(steps []DecayStep, floor float64) DecayFunc {
	return func(ageDays int) float64 {
		for _, s := range steps {
			if ageDays <= s.MaxAgeDays {
				return s.Factor
			}
		}
		return floor
	}
}
