package scoring

import "fmt"

// Tier is one of the five ordered engagement buckets.
type Tier string

const (
	TierCold    Tier = "cold"
	TierWarm    Tier = "warm"
	TierEngaged Tier = "engaged"
	TierHot     Tier = "hot"
	TierBurning Tier = "burning"
)

// tierOrder fixes the strict total order cold < warm < engaged < hot < burning.
var tierOrder = []Tier{TierCold, TierWarm, TierEngaged, TierHot, TierBurning}

// Tiers returns the five canonical tiers in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// Index returns the tier's position in the engagement order, or -1 for an
// unknown tier name.
func (t Tier) Index() int {
	for i, known := range tierOrder {
		if t == known {
			return i
		}
	}
	return -1
}

// ParseTier maps a tier name to its Tier, reporting whether it is one of
// the five canonical tiers.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	return t, t.Index() >= 0
}

// Threshold maps a score bracket to a tier and the action configured for it.
// MaxScore == nil marks the open-ended top tier.
type Threshold struct {
	Tier            Tier   `json:"trigger_level"`
	MinScore        int    `json:"min_score"`
	MaxScore        *int   `json:"max_score"`
	Action          string `json:"action"`
	AutoExecute     bool   `json:"auto_execute"`
	Priority        string `json:"priority"`
	NurtureSequence string `json:"nurture_sequence,omitempty"`
	MeetingPriority string `json:"meeting_priority,omitempty"`
}

// ScoreTier returns the first threshold bracket containing score. The bool
// is false when no bracket matched, in which case the tier falls back to
// cold; callers should log that as a configuration defect.
func ScoreTier(score int, thresholds []Threshold) (Tier, bool) {
	for _, th := range thresholds {
		if th.MaxScore == nil {
			if score >= th.MinScore {
				return th.Tier, true
			}
			continue
		}
		if score >= th.MinScore && score <= *th.MaxScore {
			return th.Tier, true
		}
	}
	return TierCold, false
}

// DefaultThresholds is the canonical 5-tier table used when the config
// store has no threshold rows.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Tier: TierCold, MinScore: 0, MaxScore: intPtr(49), Action: "ignore", AutoExecute: false, Priority: "low"},
		{Tier: TierWarm, MinScore: 50, MaxScore: intPtr(99), Action: "watch", AutoExecute: false, Priority: "low"},
		{Tier: TierEngaged, MinScore: 100, MaxScore: intPtr(199), Action: "nurture", AutoExecute: true, Priority: "medium", NurtureSequence: "engaged_default"},
		{Tier: TierHot, MinScore: 200, MaxScore: intPtr(349), Action: "sdr_escalate", AutoExecute: true, Priority: "high"},
		{Tier: TierBurning, MinScore: 350, MaxScore: nil, Action: "auto_meeting", AutoExecute: true, Priority: "urgent", MeetingPriority: "urgent"},
	}
}

// ValidateThresholds checks that the table is ordered by ascending
// MinScore, has no gaps or overlaps, and ends in exactly one open-ended
// tier. A table that fails validation should be replaced with
// DefaultThresholds by the caller.
func ValidateThresholds(thresholds []Threshold) error {
	if len(thresholds) == 0 {
		return fmt.Errorf("threshold table is empty")
	}
	if thresholds[0].MinScore != 0 {
		return fmt.Errorf("threshold table must start at 0, starts at %d", thresholds[0].MinScore)
	}
	for i, th := range thresholds {
		if th.Tier.Index() < 0 {
			return fmt.Errorf("unknown tier %q at position %d", th.Tier, i)
		}
		last := i == len(thresholds)-1
		if th.MaxScore == nil {
			if !last {
				return fmt.Errorf("open-ended tier %q is not the top tier", th.Tier)
			}
			continue
		}
		if *th.MaxScore < th.MinScore {
			return fmt.Errorf("tier %q has max_score %d below min_score %d", th.Tier, *th.MaxScore, th.MinScore)
		}
		if last {
			return fmt.Errorf("top tier %q must be open-ended", th.Tier)
		}
		if next := thresholds[i+1].MinScore; next != *th.MaxScore+1 {
			return fmt.Errorf("gap or overlap between %q (max %d) and %q (min %d)", th.Tier, *th.MaxScore, thresholds[i+1].Tier, next)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
