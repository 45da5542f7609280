package session

// Tier names a capture-quality profile. Exactly one tier is active per
// session; switching requires a screencast restart with new parameters.
type Tier string

const (
	TierBackground Tier = "background"
	TierSecondary  Tier = "secondary"
	TierPrimary    Tier = "primary"
)

// TierSpec maps a tier to concrete capture parameters.
type TierSpec struct {
	FPS     int
	Quality int // JPEG quality, 0-100
}

var tierSpecs = map[Tier]TierSpec{
	TierBackground: {FPS: 2, Quality: 40},
	TierSecondary:  {FPS: 10, Quality: 55},
	TierPrimary:    {FPS: 25, Quality: 70},
}

// ValidTier reports whether t names a known tier.
func ValidTier(t Tier) bool {
	_, ok := tierSpecs[t]
	return ok
}

// Spec returns the capture parameters for a tier, falling back to the
// secondary profile for unknown names.
func (t Tier) Spec() TierSpec {
	if s, ok := tierSpecs[t]; ok {
		return s
	}
	return tierSpecs[TierSecondary]
}

// everyNthFrame converts a target FPS to the compositor frame stride the
// capture protocol expects (the compositor produces ~60 frames/second).
func (s TierSpec) everyNthFrame() int {
	if s.FPS <= 0 {
		return 60
	}
	n := 60 / s.FPS
	if n < 1 {
		n = 1
	}
	return n
}
