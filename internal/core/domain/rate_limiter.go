// Package domain concentra entidades e estruturas centrais da API.
package domain

import "time"

// WindowKind names the namespace of a counter window.
type WindowKind string

const (
	WindowMinute WindowKind = "minute"
	WindowDay    WindowKind = "day"
)

// Window is a fixed-length bucket. A counter created inside a window lives for
// Length+Grace so it never expires mid-window.
type Window struct {
	Kind   WindowKind
	Length time.Duration
	Grace  time.Duration
}

var (
	MinuteWindow = Window{Kind: WindowMinute, Length: time.Minute, Grace: time.Second}
	DayWindow    = Window{Kind: WindowDay, Length: 24 * time.Hour, Grace: 61 * time.Second}
)

// Index returns floor(now / length) in whole seconds.
func (w Window) Index(now time.Time) int64 {
	length := int64(w.Length / time.Second)
	sec := now.Unix()
	idx := sec / length
	if sec < 0 && sec%length != 0 {
		idx--
	}
	return idx
}

// TTL is the expiry applied to a counter on its first increment.
func (w Window) TTL() time.Duration {
	return w.Length + w.Grace
}

// Remaining returns the time left until the window containing now rolls over.
func (w Window) Remaining(now time.Time) time.Duration {
	length := int64(w.Length / time.Second)
	next := time.Unix((w.Index(now)+1)*length, 0)
	return next.Sub(now)
}

type RateLimitRule struct {
	MinuteCeiling int64
	DayCeiling    int64
}

type Decision struct {
	Allowed     bool
	Bypassed    bool
	Identifier  string
	AppliedRule RateLimitRule
	MinuteCount int64
	DayCount    int64
}

// MinuteRemaining reports how many more attempts fit in the current minute window.
func (d Decision) MinuteRemaining() int64 {
	return remaining(d.AppliedRule.MinuteCeiling, d.MinuteCount)
}

func (d Decision) DayRemaining() int64 {
	return remaining(d.AppliedRule.DayCeiling, d.DayCount)
}

func remaining(ceiling, count int64) int64 {
	if count >= ceiling {
		return 0
	}
	return ceiling - count
}
