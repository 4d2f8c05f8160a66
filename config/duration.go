package config

import "time"

// Duration wraps time.Duration so BurntSushi/toml can decode values like
// "21d" directly into config fields via encoding.TextUnmarshaler, matching
// the teacher's Duration.Duration field-access convention.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string, adding a "d" unit (24h) on top
// of time.ParseDuration's set, since renewal/retry windows in spec.md are
// naturally expressed in days.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText round-trips Duration back to its string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ParseDuration parses s as a time.Duration, additionally accepting a
// trailing "d" suffix meaning whole days.
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 0 && s[len(s)-1] == 'd' {
		days, err := time.ParseDuration(s[:len(s)-1] + "h")
		if err != nil {
			return 0, err
		}
		return days * 24, nil
	}
	return time.ParseDuration(s)
}
