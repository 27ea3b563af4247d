package market

import (
	"fmt"
	"strings"
	"time"
)

type Interval string

const (
	OneMinute      Interval = "1m"
	ThreeMinutes   Interval = "3m"
	FiveMinutes    Interval = "5m"
	FifteenMinutes Interval = "15m"
	ThirtyMinutes  Interval = "30m"
	OneHour        Interval = "1h"
	TwoHours       Interval = "2h"
	FourHours      Interval = "4h"
	OneDay         Interval = "1d"
	OneWeek        Interval = "1w"
)

var intervalDurations = map[Interval]time.Duration{
	OneMinute:      time.Minute,
	ThreeMinutes:   3 * time.Minute,
	FiveMinutes:    5 * time.Minute,
	FifteenMinutes: 15 * time.Minute,
	ThirtyMinutes:  30 * time.Minute,
	OneHour:        time.Hour,
	TwoHours:       2 * time.Hour,
	FourHours:      4 * time.Hour,
	OneDay:         24 * time.Hour,
	OneWeek:        7 * 24 * time.Hour,
}

// aliases accepted by ParseInterval in addition to the canonical names
var intervalAliases = map[string]Interval{
	"M1":  OneMinute,
	"M5":  FiveMinutes,
	"M15": FifteenMinutes,
	"M30": ThirtyMinutes,
	"H1":  OneHour,
	"H4":  FourHours,
	"D":   OneDay,
	"D1":  OneDay,
	"W":   OneWeek,
	"W1":  OneWeek,
}

// Duration returns the length of one bar, or 0 for an unknown interval.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}

func (i Interval) String() string {
	return string(i)
}

// ParseInterval accepts canonical names ("1h") and OANDA style names ("H1").
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if iv := Interval(strings.ToLower(s)); iv.Valid() {
		return iv, nil
	}
	if iv, ok := intervalAliases[strings.ToUpper(s)]; ok {
		return iv, nil
	}
	return "", fmt.Errorf("unknown interval %q", s)
}
