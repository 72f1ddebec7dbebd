package hooks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/instinct/internal/engine"
	"github.com/lazypower/instinct/internal/store"
)

// handleSkillUse feeds a skill invocation back into the confidence engine.
// Called after the observation is recorded; failure to find a matching
// skill is not an error — not every skill the host runs came from here.
func handleSkillUse(eng *engine.Engine, input *HookInput) error {
	var in skillInput
	if err := json.Unmarshal(input.ToolInput, &in); err != nil {
		return fmt.Errorf("parse skill input: %w", err)
	}
	name := in.Skill
	if name == "" {
		name = in.Name
	}
	if name == "" {
		return nil
	}

	skillID, err := resolveSkill(eng.DB, name)
	if err != nil || skillID == "" {
		return err
	}

	eventID := input.ToolUseID
	if eventID == "" {
		eventID = fmt.Sprintf("%s-%d", input.SessionID, time.Now().UnixMilli())
	}
	_, err = eng.ApplySkillUsage(skillID, eventID)
	return err
}

// resolveSkill maps a skill name onto a stored skill id: exact id first,
// then a unique substring match.
func resolveSkill(db *store.DB, name string) (string, error) {
	if s, err := store.GetSkill(db, name); err != nil {
		return "", err
	} else if s != nil {
		return s.ID, nil
	}

	skills, err := store.ListSkills(db)
	if err != nil {
		return "", err
	}
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	var found string
	for _, s := range skills {
		if strings.Contains(s.ID, slug) || strings.Contains(slug, s.Domain) {
			if found != "" {
				return "", nil // ambiguous
			}
			found = s.ID
		}
	}
	return found, nil
}
