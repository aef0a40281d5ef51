package ingest

import (
	"time"

	"github.com/david/contract-map/internal/config"
)

// Window is the posted-date range of a refresh.
type Window struct {
	From time.Time
	To   time.Time
}

// TrailingWindow returns the days-long range ending at now.
func TrailingWindow(now time.Time, days int) Window {
	return Window{From: now.AddDate(0, 0, -days), To: now}
}

// LimitPolicy picks the per-query result limit from the time of day.
type LimitPolicy struct {
	BusinessHours int
	OffHours      int
	StartHour     int
	EndHour       int
	Location      *time.Location
}

func LimitPolicyFromConfig(cfg config.RefreshConfig) LimitPolicy {
	return LimitPolicy{
		BusinessHours: cfg.BusinessHoursLimit,
		OffHours:      cfg.OffHoursLimit,
		StartHour:     cfg.BusinessStartHour,
		EndHour:       cfg.BusinessEndHour,
		Location:      cfg.Location,
	}
}

// LimitAt returns BusinessHours on weekdays in [StartHour, EndHour) local
// time and OffHours otherwise.
func (p LimitPolicy) LimitAt(t time.Time) int {
	if p.Location != nil {
		t = t.In(p.Location)
	}
	if p.businessHours(t) {
		return positive(p.BusinessHours, 100)
	}
	return positive(p.OffHours, 25)
}

func (p LimitPolicy) businessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= p.StartHour && h < p.EndHour
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
