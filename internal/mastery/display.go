package mastery

import (
	"sort"

	"github.com/abhisek/lessonloop/internal/session"
)

// OutcomeSummary is a read-only view over the updates for one outcome,
// used by the CLI when showing a session.
type OutcomeSummary struct {
	OutcomeID string
	Updates   int
	Mean      float64
	Latest    float64
}

// Summarize groups updates by outcome, ordered by outcome id.
func Summarize(updates []session.MasteryUpdate) []OutcomeSummary {
	byID := map[string]*OutcomeSummary{}
	sums := map[string]float64{}
	for _, u := range updates {
		s, ok := byID[u.OutcomeID]
		if !ok {
			s = &OutcomeSummary{OutcomeID: u.OutcomeID}
			byID[u.OutcomeID] = s
		}
		s.Updates++
		s.Latest = u.Score
		sums[u.OutcomeID] += u.Score
	}

	out := make([]OutcomeSummary, 0, len(byID))
	for id, s := range byID {
		s.Mean = sums[id] / float64(s.Updates)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OutcomeID < out[j].OutcomeID })
	return out
}
