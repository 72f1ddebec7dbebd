package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/lazypower/instinct/internal/store"
)

// groupFingerprint identifies a candidate skill cluster by its sorted
// member ids, so an already-evolved group is not re-evolved.
func groupFingerprint(memberIDs []string) string {
	ids := make([]string, len(memberIDs))
	copy(ids, memberIDs)
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Evolve clusters active instincts by domain and promotes groups that are
// large and confident enough into skills. Members get a back-reference to
// the skill; the group fingerprint is recorded so an unchanged cluster is
// not promoted twice, while a membership change (any member added or
// removed) yields a new fingerprint and re-qualifies the group. Mutates
// the in-memory set; persistence happens with the rest of the pass.
func Evolve(q store.Querier, ins []*store.Instinct, minSize int, minAvg float64, now time.Time) ([]*store.Skill, error) {
	byDomain := make(map[string][]*store.Instinct)
	for _, in := range ins {
		if in.Status != store.StatusActive || in.Source == store.SourceInherited {
			continue
		}
		byDomain[in.Domain] = append(byDomain[in.Domain], in)
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	var skills []*store.Skill
	for _, domain := range domains {
		members := byDomain[domain]
		if len(members) < minSize {
			continue
		}
		var sum float64
		ids := make([]string, 0, len(members))
		for _, m := range members {
			sum += m.Confidence
			ids = append(ids, m.ID)
		}
		avg := sum / float64(len(members))
		if avg < minAvg {
			continue
		}

		fp := groupFingerprint(ids)
		seen, err := store.HasEvolvedGroup(q, fp)
		if err != nil {
			return nil, fmt.Errorf("check evolved group: %w", err)
		}
		if seen {
			continue
		}

		skill := &store.Skill{
			ID:            fmt.Sprintf("skill-%s-%s", Slug(domain, ""), fp[:8]),
			Domain:        domain,
			MemberIDs:     ids,
			AvgConfidence: avg,
			CreatedAt:     now.UnixMilli(),
		}
		if err := store.SaveSkill(q, skill); err != nil {
			return nil, fmt.Errorf("save skill: %w", err)
		}
		if err := store.SaveEvolvedGroup(q, fp, domain, skill.ID); err != nil {
			return nil, fmt.Errorf("record evolved group: %w", err)
		}
		for _, m := range members {
			m.SkillID = skill.ID
		}
		skills = append(skills, skill)
	}
	return skills, nil
}
