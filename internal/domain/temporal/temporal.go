// Package temporal parses a small fixed set of relative time expressions
// into concrete appointment proposals. It is deliberately conservative:
// expressions are tried in declaration order and the first match wins.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/trigger"
)

// Business hours window, inclusive on both ends, in a fixed UTC-3 offset.
const (
	OpeningHour = 9
	ClosingHour = 17
	maxDays     = 365
)

// Zone is the fixed offset every proposal is expressed in.
var Zone = time.FixedZone("BRT", -3*60*60)

// Proposal is the extractor output. At is meaningful only when Valid.
type Proposal struct {
	At         time.Time `json:"at"`
	Valid      bool      `json:"valid"`
	Expression string    `json:"expression,omitempty"`
}

type expression struct {
	name  string
	match func(text string) (offset func(time.Time) time.Time, ok bool)
}

var dayOffsetRe = regexp.MustCompile(`\b(?:em|daqui a)\s+(\d{1,3})\s+dias?\b`)

func phrase(name string, shift func(time.Time) time.Time, phrases ...string) expression {
	return expression{
		name: name,
		match: func(text string) (func(time.Time) time.Time, bool) {
			for _, p := range phrases {
				if strings.Contains(text, p) {
					return shift, true
				}
			}
			return nil, false
		},
	}
}

var expressions = []expression{
	{
		name: "days",
		match: func(text string) (func(time.Time) time.Time, bool) {
			m := dayOffsetRe.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || n > maxDays {
				return nil, false
			}
			return func(t time.Time) time.Time { return t.AddDate(0, 0, n) }, true
		},
	},
	phrase("tomorrow", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }, "amanha"),
	phrase("next_week", func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }, "semana que vem", "proxima semana"),
	phrase("next_month", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }, "mes que vem", "proximo mes"),
}

// Extract returns the proposal for the first matching expression, relative
// to now (converted to Zone). The proposal is not yet adjusted to business
// hours.
func Extract(text string, now time.Time) Proposal {
	folded := trigger.Normalize(text)
	base := now.In(Zone)
	for _, e := range expressions {
		if shift, ok := e.match(folded); ok {
			return Proposal{At: shift(base), Valid: true, Expression: e.name}
		}
	}
	return Proposal{}
}

// AdjustToBusinessHours moves t into the window: before 09:00 becomes 09:00
// the same day, after 17:00 becomes 09:00 the next day, anything within
// [09:00, 17:00] is kept. The result is in Zone.
func AdjustToBusinessHours(t time.Time) time.Time {
	t = t.In(Zone)
	y, m, d := t.Date()
	opening := time.Date(y, m, d, OpeningHour, 0, 0, 0, Zone)
	closing := time.Date(y, m, d, ClosingHour, 0, 0, 0, Zone)

	switch {
	case t.Before(opening):
		return opening
	case t.After(closing):
		return time.Date(y, m, d+1, OpeningHour, 0, 0, 0, Zone)
	default:
		return t
	}
}
