package injection

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/af-corp/appgen-gateway/internal/config"
	"github.com/af-corp/appgen-gateway/internal/filter"
)

// escalationStep is added to the top severity for every further distinct
// rule that matched.
const escalationStep = 0.05

// Detection is one rule match in the scanned text.
type Detection struct {
	Rule       string
	Category   Category
	Severity   float64
	Start, End int
}

// Scanner screens app descriptions for prompt injection and requests for
// malicious apps.
type Scanner struct {
	rules []Rule
	cfg   func() config.InjectionFilterConfig
}

// NewScanner takes a config getter so hot reloads change thresholds in place.
func NewScanner(cfg func() config.InjectionFilterConfig) *Scanner {
	return &Scanner{rules: DefaultRules(), cfg: cfg}
}

func (s *Scanner) Name() string  { return "injection" }
func (s *Scanner) Enabled() bool { return s.cfg().Enabled }

// Scan returns every match, ordered by position in text.
func (s *Scanner) Scan(text string) []Detection {
	var out []Detection
	for _, r := range s.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			out = append(out, Detection{
				Rule:     r.Name,
				Category: r.Category,
				Severity: r.Severity,
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}
	slices.SortStableFunc(out, func(a, b Detection) int { return cmp.Compare(a.Start, b.Start) })
	return out
}

// Score is the highest matched severity, raised by escalationStep for each
// additional distinct rule, capped at 1.
func (s *Scanner) Score(text string) ([]Detection, float64) {
	detections := s.Scan(text)
	if len(detections) == 0 {
		return nil, 0
	}

	top := 0.0
	rules := make(map[string]struct{}, len(detections))
	for _, d := range detections {
		top = max(top, d.Severity)
		rules[d.Rule] = struct{}{}
	}
	score := top + escalationStep*float64(len(rules)-1)
	return detections, min(score, 1.0)
}

// ScanText implements filter.Filter.
func (s *Scanner) ScanText(_ context.Context, text string) filter.Result {
	detections, score := s.Score(text)
	cfg := s.cfg()

	res := filter.Result{Action: filter.ActionPass, FilterName: s.Name(), Detections: len(detections), Score: score}
	switch {
	case len(detections) == 0:
	case score >= cfg.BlockThreshold:
		res.Action = filter.ActionBlock
		res.Message = fmt.Sprintf("prompt injection detected (score %.2f, rule %s)", score, detections[0].Rule)
	case cfg.FlagThreshold > 0 && score >= cfg.FlagThreshold:
		res.Action = filter.ActionFlag
	}
	return res
}
