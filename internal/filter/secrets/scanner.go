// Package secrets finds credentials in text. The gateway uses it to flag
// descriptions that carry secrets and to scrub error details before they
// are returned to callers.
package secrets

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/af-corp/appgen-gateway/internal/filter"
)

const redactedMarker = "[REDACTED]"

// Detection is one secret found in text, as a byte range.
type Detection struct {
	Pattern    string
	Start, End int
}

type Scanner struct {
	patterns []Pattern
}

func NewScanner() *Scanner {
	return &Scanner{patterns: DefaultPatterns()}
}

func (s *Scanner) Name() string  { return "secrets" }
func (s *Scanner) Enabled() bool { return true }

// Scan returns every match ordered by start offset.
func (s *Scanner) Scan(text string) []Detection {
	var out []Detection
	for _, p := range s.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			out = append(out, Detection{Pattern: p.Name, Start: loc[0], End: loc[1]})
		}
	}
	slices.SortStableFunc(out, func(a, b Detection) int { return cmp.Compare(a.Start, b.Start) })
	return out
}

// ScanText implements filter.Filter. Secrets are flagged, never blocked.
func (s *Scanner) ScanText(_ context.Context, text string) filter.Result {
	detections := s.Scan(text)
	if len(detections) == 0 {
		return filter.Result{Action: filter.ActionPass, FilterName: s.Name()}
	}
	return filter.Result{
		Action:     filter.ActionFlag,
		FilterName: s.Name(),
		Message:    fmt.Sprintf("%d secret(s) detected", len(detections)),
		Detections: len(detections),
		Score:      1,
	}
}

// Redact replaces each secret with a marker. Overlapping matches collapse
// into one marker.
func (s *Scanner) Redact(text string) string {
	detections := s.Scan(text)
	if len(detections) == 0 {
		return text
	}

	var sb strings.Builder
	pos := 0
	for _, d := range detections {
		switch {
		case d.End <= pos:
			continue
		case d.Start >= pos:
			sb.WriteString(text[pos:d.Start])
			sb.WriteString(redactedMarker)
		}
		pos = d.End
	}
	sb.WriteString(text[pos:])
	return sb.String()
}
