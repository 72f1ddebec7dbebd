package engine

import (
	"sort"
	"strings"

	"github.com/lazypower/instinct/internal/store"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "to": true,
	"of": true, "in": true, "on": true, "when": true, "with": true,
	"and": true, "or": true, "is": true, "are": true,
}

func tokens(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:()[]{}\"'`")
		if f == "" || stopWords[f] {
			continue
		}
		set[f] = true
	}
	return set
}

// tokenSimilarity computes the Jaccard coefficient over word tokens,
// stop words removed. Two empty strings are not similar.
func tokenSimilarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// Similar reports whether two instincts describe the same behavior: same
// domain, and combined trigger+action text above the threshold.
func Similar(a, b *store.Instinct, threshold float64) bool {
	if a.Domain != b.Domain {
		return false
	}
	sim := tokenSimilarity(a.Trigger+" "+a.Action, b.Trigger+" "+b.Action)
	return sim >= threshold
}

// mergeBonus is added to the surviving confidence on each merge; two
// independent observations of the same behavior are stronger evidence
// than either alone.
const mergeBonus = 0.05

// MergeDuplicates collapses near-duplicate instincts in place. The survivor
// of each cluster is the higher-confidence member (older one on a tie);
// it absorbs the duplicates' contributing sessions, takes the max
// confidence plus a small bonus, keeps the earliest creation time, and the
// losers are removed. Returns the surviving set and the ids merged away.
func (r Rules) MergeDuplicates(ins []*store.Instinct, threshold float64) ([]*store.Instinct, []string) {
	// Stable order so repeated runs pick the same survivors.
	sorted := make([]*store.Instinct, len(ins))
	copy(sorted, ins)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		if sorted[i].CreatedAt != sorted[j].CreatedAt {
			return sorted[i].CreatedAt < sorted[j].CreatedAt
		}
		return sorted[i].ID < sorted[j].ID
	})

	var survivors []*store.Instinct
	var merged []string
	for _, in := range sorted {
		if in.Status != store.StatusActive {
			survivors = append(survivors, in)
			continue
		}
		absorbed := false
		for _, s := range survivors {
			if s.Status != store.StatusActive || !Similar(s, in, threshold) {
				continue
			}
			for _, sess := range in.Sessions {
				s.AddSession(sess)
			}
			if in.Confidence > s.Confidence {
				s.Confidence = in.Confidence
			}
			s.Confidence = min(r.Max, s.Confidence+mergeBonus)
			r.maybeAutoApprove(s)
			if in.CreatedAt < s.CreatedAt {
				s.CreatedAt = in.CreatedAt
			}
			if in.LastReinforcedAt > s.LastReinforcedAt {
				s.LastReinforcedAt = in.LastReinforcedAt
			}
			merged = append(merged, in.ID)
			absorbed = true
			break
		}
		if !absorbed {
			survivors = append(survivors, in)
		}
	}
	return survivors, merged
}
