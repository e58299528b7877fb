// Package timeparse resolves Korean and English natural-language time
// expressions into absolute instants in the canonical KST zone.
package timeparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnrecognized is returned when no known pattern matches the
	// expression, or a matched magnitude is zero.
	ErrUnrecognized = errors.New("time expression not recognized")
	// ErrPastTime is returned when a recognized expression resolves to an
	// instant at or before the reference time.
	ErrPastTime = errors.New("time expression resolves to the past")
)

// kst is the canonical zone for all parsing and display. A fixed offset is
// used so behavior does not depend on the host tz database; Asia/Seoul has
// had no DST since 1988.
var kst = time.FixedZone("KST", 9*60*60)

// Location returns the canonical time zone.
func Location() *time.Location {
	return kst
}

// unitSeconds maps Korean and English duration units to seconds.
var unitSeconds = map[string]int64{
	"초":  1,
	"분":  60,
	"시간": 3600,
	"일":  86400,
	"주":  604800,

	"second": 1, "seconds": 1, "sec": 1, "secs": 1, "s": 1,
	"minute": 60, "minutes": 60, "min": 60, "mins": 60, "m": 60,
	"hour": 3600, "hours": 3600, "hr": 3600, "hrs": 3600, "h": 3600,
	"day": 86400, "days": 86400, "d": 86400,
	"week": 604800, "weeks": 604800, "w": 604800,
}

var relativePatterns = []*regexp.Regexp{
	// "1분 후", "30초 뒤", "2시간 후에"
	regexp.MustCompile(`(\d+)\s*(초|분|시간|일|주)\s*(?:후|뒤)(?:에)?`),
	// "in 5 minutes", "after 1 hour"
	regexp.MustCompile(`(?:in|after)\s+(\d+)\s*(seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w)\b`),
	// bare "5분", "10초" (trailing "후" implied)
	regexp.MustCompile(`^(\d+)\s*(초|분|시간|일|주)$`),
}

var (
	koAmPmClockRE = regexp.MustCompile(`(오전|오후)\s*(\d{1,2})시(?:\s*(\d{1,2})분)?`)
	// "오후 3:30" is what Format produces; accepting it keeps
	// parse/format round trips consistent.
	koAmPmColonRE = regexp.MustCompile(`(오전|오후)\s*(\d{1,2}):(\d{2})`)
	clock24RE     = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?`)
	ko24ClockRE   = regexp.MustCompile(`(\d{1,2})시(?:\s*(\d{1,2})분)?`)
)

// dayWords must be scanned longest-first so "내일모레" is not read as "내일".
var dayWords = []struct {
	word   string
	offset int
}{
	{"내일모레", 2},
	{"모레", 2},
	{"day after tomorrow", 2},
	{"내일", 1},
	{"tomorrow", 1},
	{"오늘", 0},
	{"today", 0},
}

// Parse resolves a time expression against the reference instant now.
// The result is always strictly after now and expressed in KST.
//
// Recognized forms:
//   - relative durations: "1분 후", "30초 뒤", "in 5 minutes", "after 1 hour"
//   - absolute clock times: "오후 3시", "오전 10시 30분", "15:00", "14시 30분"
//   - day-qualified times: "내일 오전 10시", "tomorrow 15:00", "모레 9시"
func Parse(expr string, now time.Time) (time.Time, error) {
	text := strings.ToLower(strings.TrimSpace(expr))
	if text == "" {
		return time.Time{}, ErrUnrecognized
	}
	now = now.In(kst)

	if t, ok, err := parseRelative(text, now); ok {
		return t, err
	}
	if t, ok, err := parseAbsolute(text, now); ok {
		return t, err
	}
	return time.Time{}, ErrUnrecognized
}

func parseRelative(text string, now time.Time) (time.Time, bool, error) {
	for _, re := range relativePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		mult, ok := unitSeconds[strings.TrimSpace(m[2])]
		if !ok {
			continue
		}
		if amount <= 0 {
			return time.Time{}, true, ErrUnrecognized
		}
		return now.Add(time.Duration(amount*mult) * time.Second), true, nil
	}
	return time.Time{}, false, nil
}

func parseAbsolute(text string, now time.Time) (time.Time, bool, error) {
	dayOffset := 0
	explicitDay := false
	for _, dw := range dayWords {
		if strings.Contains(text, dw.word) {
			dayOffset = dw.offset
			explicitDay = true
			break
		}
	}

	hour, minute, second, ok := matchClock(text)
	if !ok {
		return time.Time{}, false, nil
	}

	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, kst)
	target = target.AddDate(0, 0, dayOffset)

	// A bare clock time that already passed today rolls to tomorrow;
	// an explicit day qualifier anchors the date instead.
	if !explicitDay && !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}

	if !target.After(now) {
		return time.Time{}, true, ErrPastTime
	}
	return target, true, nil
}

func matchClock(text string) (hour, minute, second int, ok bool) {
	// A meridiem-qualified hour outside 1..12 ("오후 13시") is malformed,
	// not a 24-hour reading of the same token.
	if m := koAmPmClockRE.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[2])
		min := atoiDefault(m[3], 0)
		if h < 1 || h > 12 || min >= 60 {
			return 0, 0, 0, false
		}
		return meridiemHour(m[1], h), min, 0, true
	}

	if m := koAmPmColonRE.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[2])
		min, _ := strconv.Atoi(m[3])
		if h < 1 || h > 12 || min >= 60 {
			return 0, 0, 0, false
		}
		return meridiemHour(m[1], h), min, 0, true
	}

	if m := clock24RE.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		sec := atoiDefault(m[3], 0)
		if h < 24 && min < 60 && sec < 60 {
			return h, min, sec, true
		}
	}

	if m := ko24ClockRE.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := atoiDefault(m[2], 0)
		if h < 24 && min < 60 {
			return h, min, 0, true
		}
	}

	return 0, 0, 0, false
}

func meridiemHour(meridiem string, h int) int {
	switch meridiem {
	case "오후":
		if h < 12 {
			return h + 12
		}
	case "오전":
		if h == 12 {
			return 0
		}
	}
	return h
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
