package engine

import (
	"fmt"

	"github.com/lazypower/instinct/internal/store"
)

// ApplySkillUsage records one skill-use event and feeds a small confidence
// boost back to the skill's member instincts. Events are deduplicated by
// id, so replaying the same event is a no-op. Returns false when the event
// was already counted.
func (e *Engine) ApplySkillUsage(skillID, eventID string) (bool, error) {
	rules := RulesFromConfig(e.Cfg.Instincts)
	fresh := false
	err := e.DB.WithTx(func(q store.Querier) error {
		var err error
		fresh, err = store.RecordSkillUsage(q, skillID, eventID)
		if err != nil || !fresh {
			return err
		}

		skill, err := store.GetSkill(q, skillID)
		if err != nil {
			return err
		}
		if skill == nil {
			return fmt.Errorf("unknown skill %s", skillID)
		}

		// The skill row itself stays as created; only its usage counters
		// and the member instincts move.
		for _, id := range skill.MemberIDs {
			in, err := store.GetInstinct(q, id)
			if err != nil {
				return err
			}
			if in == nil || in.Status != store.StatusActive {
				continue
			}
			rules.ReinforceUsage(in)
			if err := store.SaveInstinct(q, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("apply skill usage: %w", err)
	}
	return fresh, nil
}
