package motion

const (
	MinThreshold = 1
	MaxThreshold = 50
	MinArea      = 5
	MaxArea      = 1000
	MinCooldown  = 5
	MaxCooldown  = 300

	DefaultThreshold = 25
	DefaultMinArea   = 500
	DefaultCooldown  = 60
)

// Settings are the user-tunable detection parameters. CooldownSec gates
// notifications only; episode re-arming is governed by the quiet frame count.
type Settings struct {
	Threshold   int `json:"threshold"`
	MinArea     int `json:"min_area"`
	CooldownSec int `json:"cooldown"`
}

func DefaultSettings() Settings {
	return Settings{Threshold: DefaultThreshold, MinArea: DefaultMinArea, CooldownSec: DefaultCooldown}
}

// Clamp forces every field into its allowed range. Out-of-range input is
// never rejected.
func (s Settings) Clamp() Settings {
	return Settings{
		Threshold:   clamp(s.Threshold, MinThreshold, MaxThreshold),
		MinArea:     clamp(s.MinArea, MinArea, MaxArea),
		CooldownSec: clamp(s.CooldownSec, MinCooldown, MaxCooldown),
	}
}

// SettingsUpdate carries a partial update; nil fields keep their value.
type SettingsUpdate struct {
	Threshold   *int `json:"threshold"`
	MinArea     *int `json:"min_area"`
	CooldownSec *int `json:"cooldown"`
}

func (u SettingsUpdate) Apply(s Settings) Settings {
	if u.Threshold != nil {
		s.Threshold = *u.Threshold
	}
	if u.MinArea != nil {
		s.MinArea = *u.MinArea
	}
	if u.CooldownSec != nil {
		s.CooldownSec = *u.CooldownSec
	}
	return s.Clamp()
}

// SettingsStore persists settings between runs.
type SettingsStore interface {
	Load() (Settings, error)
	Save(Settings) error
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
