package engine

import (
	"regexp"
	"strings"
	"time"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/detect"
	"github.com/lazypower/instinct/internal/store"
)

// Rules are the confidence lifecycle parameters, lifted from config once
// per pass.
type Rules struct {
	Initial      float64
	Increment    float64
	Max          float64
	AutoApprove  float64
	DecayEnabled bool
	GraceDays    int
	DecayPerWeek float64
	PruneBelow   float64
	StaleDays    int
	MaxInstincts int
	UsageBoost   float64
}

// RulesFromConfig converts the config section into engine rules.
func RulesFromConfig(cfg config.InstinctsConfig) Rules {
	return Rules{
		Initial:      cfg.InitialConfidence,
		Increment:    cfg.ConfidenceIncrement,
		Max:          cfg.MaxConfidence,
		AutoApprove:  cfg.AutoApproveThreshold,
		DecayEnabled: cfg.DecayEnabled,
		GraceDays:    cfg.GracePeriodDays,
		DecayPerWeek: cfg.DecayPerWeek,
		PruneBelow:   cfg.PruneConfidence,
		StaleDays:    cfg.PruneStalenessDays,
		MaxInstincts: cfg.MaxInstincts,
		UsageBoost:   cfg.UsageReinforcement,
	}
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the stable instinct id from domain and trigger.
func Slug(domain, trigger string) string {
	raw := strings.ToLower(domain + " " + trigger)
	slug := strings.Trim(slugCleanRe.ReplaceAllString(raw, "-"), "-")
	if len(slug) > 72 {
		slug = strings.Trim(slug[:72], "-")
	}
	return slug
}

// NewInstinct creates an instinct from a candidate pattern at the initial
// confidence.
func (r Rules) NewInstinct(c detect.Candidate, now time.Time) *store.Instinct {
	in := &store.Instinct{
		ID:               Slug(c.Domain, c.Trigger),
		Domain:           c.Domain,
		Category:         c.Category,
		Trigger:          c.Trigger,
		Action:           c.Action,
		Confidence:       r.Initial,
		Source:           store.SourceSession,
		Status:           store.StatusActive,
		CreatedAt:        now.UnixMilli(),
		LastReinforcedAt: now.UnixMilli(),
	}
	for _, s := range c.Sessions {
		in.AddSession(s)
	}
	r.maybeAutoApprove(in)
	return in
}

// Reinforce applies one reinforcement: a fixed increment, capped,
// contributing sessions unioned, decay bookkeeping reset.
func (r Rules) Reinforce(in *store.Instinct, sessions []string, now time.Time) {
	if in.Source == store.SourceInherited {
		return // inherited instincts are read-only for confidence
	}
	in.Confidence = min(r.Max, in.Confidence+r.Increment)
	in.LastReinforcedAt = now.UnixMilli()
	in.DecayedWeeks = 0
	for _, s := range sessions {
		in.AddSession(s)
	}
	r.maybeAutoApprove(in)
}

// ReinforceUsage applies the skill-usage feedback boost. Smaller than a
// pattern reinforcement and does not reset the decay clock.
func (r Rules) ReinforceUsage(in *store.Instinct) {
	if in.Source == store.SourceInherited {
		return
	}
	in.Confidence = min(r.Max, in.Confidence+r.UsageBoost)
	r.maybeAutoApprove(in)
}

// maybeAutoApprove sets the auto-approved flag once confidence crosses the
// threshold. Monotonic: decay never clears it.
func (r Rules) maybeAutoApprove(in *store.Instinct) {
	if in.Confidence >= r.AutoApprove {
		in.AutoApproved = true
	}
}

// Decay applies time-based confidence loss: after the grace period, one
// decrement per whole elapsed week since the last reinforcement.
// Auto-approved instincts decay at half rate. Already-applied weeks are
// tracked so a second pass the same day subtracts nothing. Returns the
// amount removed.
func (r Rules) Decay(in *store.Instinct, now time.Time) float64 {
	if !r.DecayEnabled || in.Source == store.SourceInherited {
		return 0
	}

	days := int(now.Sub(time.UnixMilli(in.LastReinforcedAt)).Hours() / 24)
	if days <= r.GraceDays {
		return 0
	}
	weeks := days / 7
	newWeeks := weeks - in.DecayedWeeks
	if newWeeks <= 0 {
		return 0
	}

	rate := r.DecayPerWeek
	if in.AutoApproved {
		rate /= 2
	}
	amount := rate * float64(newWeeks)
	if amount > in.Confidence {
		amount = in.Confidence // never below zero in a single step
	}
	in.Confidence -= amount
	in.DecayedWeeks = weeks
	return amount
}

// ShouldPrune reports whether an instinct is due for removal: confidence
// under the floor, or no reinforcement inside the staleness window.
// Inherited instincts are exempt (policy, not confidence math).
func (r Rules) ShouldPrune(in *store.Instinct, now time.Time) bool {
	if in.Source == store.SourceInherited {
		return false
	}
	if in.Confidence < r.PruneBelow {
		return true
	}
	days := int(now.Sub(time.UnixMilli(in.LastReinforcedAt)).Hours() / 24)
	return days > r.StaleDays
}

// Stance words used for conflict detection.
var (
	positiveStance = []string{"prefer", "use", "always", "apply", "follow", "import", "annotate", "run"}
	negativeStance = []string{"avoid", "never", "don't", "do not", "skip", "remove", "stop"}
)

func stance(action string) int {
	lower := strings.ToLower(action)
	first := lower
	if i := strings.IndexByte(lower, ' '); i > 0 {
		first = lower[:i]
	}
	for _, w := range negativeStance {
		if first == w || strings.HasPrefix(lower, w+" ") {
			return -1
		}
	}
	for _, w := range positiveStance {
		if first == w {
			return 1
		}
	}
	return 0
}

// Opposed reports whether two action texts are semantically opposed:
// contrary stances over substantially the same subject.
func Opposed(a, b string) bool {
	sa, sb := stance(a), stance(b)
	if sa == 0 || sb == 0 || sa == sb {
		return false
	}
	return tokenSimilarity(stripStance(a), stripStance(b)) >= 0.5
}

func stripStance(action string) string {
	lower := strings.ToLower(action)
	for _, w := range append(append([]string{}, positiveStance...), negativeStance...) {
		lower = strings.TrimPrefix(lower, w+" ")
	}
	return lower
}
