package reader

import (
	"slices"
	"strings"
	"time"
)

// SkipPolicy decides whether a poll falls into a skip window.
type SkipPolicy struct {
	SkipHours bool
	Hours     []int
	SkipDays  bool
	Days      []string // lower-case weekday names
}

func (p SkipPolicy) ShouldSkip(now time.Time) bool {
	if p.SkipHours && len(p.Hours) > 0 && slices.Contains(p.Hours, now.Hour()) {
		return true
	}
	if p.SkipDays && len(p.Days) > 0 && slices.Contains(p.Days, strings.ToLower(now.Weekday().String())) {
		return true
	}
	return false
}
