// ABOUTME: Timestamp normalization into the canonical MM/DD/YYYY HH:MM:SS form.
// ABOUTME: Tries strict layouts in order, then a best-effort flexible parse.
package timestamp

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical timestamp representation every source timestamp
// is normalized to.
const Layout = "01/02/2006 15:04:05"

// DateLayout is the date-only portion of the canonical representation.
const DateLayout = "01/02/2006"

// ErrUnparseable is returned when no supported layout matches an input
// and the flexible fallback also fails.
var ErrUnparseable = errors.New("unparseable timestamp")

// layouts is the ordered list of strict formats. The first layout that
// parses the whole input wins. Order matters: more specific layouts
// (offsets, milliseconds) come before looser ones.
var layouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02-15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02T15:04:05.999Z07:00",
	"2006-01-02 15:04:05.999",
	time.UnixDate,
	time.ANSIC,
}

// Normalize parses input against the supported layouts and renders it in
// the canonical form. It wraps ErrUnparseable when nothing matches.
func Normalize(input string) (string, error) {
	t, err := parse(input, time.Local)
	if err != nil {
		return "", err
	}
	return t.Format(Layout), nil
}

// NormalizeIn is Normalize with an explicit IANA timezone name applied to
// inputs that carry no offset of their own.
func NormalizeIn(input, timezone string) (string, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return "", fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}
	t, err := parse(input, loc)
	if err != nil {
		return "", err
	}
	return t.Format(Layout), nil
}

// NormalizeDate returns only the date portion of the canonical form.
func NormalizeDate(input string) (string, error) {
	t, err := parse(input, time.Local)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// Parse re-parses a canonical timestamp back into a time.Time. Canonical
// strings produced by Normalize always round-trip through Parse.
func Parse(canonical string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, canonical, time.Local)
	if err != nil {
		t, err = time.ParseInLocation(DateLayout, canonical, time.Local)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, canonical)
	}
	return t, nil
}

// Duration normalizes both endpoints and returns the signed difference in
// whole minutes. A negative result is preserved: callers treat it as a
// data-quality signal, not an error.
func Duration(start, end string) (int, error) {
	s, err := parse(start, time.Local)
	if err != nil {
		return 0, fmt.Errorf("duration start: %w", err)
	}
	e, err := parse(end, time.Local)
	if err != nil {
		return 0, fmt.Errorf("duration end: %w", err)
	}
	return int(e.Sub(s).Minutes()), nil
}

// Now returns the canonical representation of the current instant.
func Now() string {
	return time.Now().Format(Layout)
}

func parse(input string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t, nil
		}
	}
	if t, ok := flexParse(input, loc); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, input)
}

// flexParse is the best-effort fallback for inputs that fail every strict
// layout: whitespace is collapsed, a trailing timezone abbreviation or
// fractional-second tail is shed, and the layouts are retried.
func flexParse(input string, loc *time.Location) (time.Time, bool) {
	s := strings.Join(strings.Fields(input), " ")
	if s == "" {
		return time.Time{}, false
	}
	candidates := []string{s, strings.ReplaceAll(s, "T", " ")}
	if i := strings.LastIndexByte(s, '.'); i > 0 {
		candidates = append(candidates, s[:i])
	}
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		candidates = append(candidates, s[:i])
	}
	for _, c := range candidates {
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, c, loc); err == nil {
				return t, true
			}
			// A candidate longer than its layout may still carry a tail
			// the layout does not describe; try the matching prefix.
			if len(c) > len(layout) {
				if t, err := time.ParseInLocation(layout, c[:len(layout)], loc); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}
