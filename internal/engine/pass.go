package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/detect"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/store"
)

// Engine runs lifecycle passes over an observation log, persisting every
// outcome through one database.
type Engine struct {
	DB  *store.DB
	Log *obslog.Log
	Cfg config.Config

	// now is swappable for tests.
	now func() time.Time
}

// Options selects the pass mode.
type Options struct {
	// Replay ignores stored offsets and reprocesses the entire log,
	// reporting the delta against the pre-pass instinct set.
	Replay bool
	// Evolve enables skill promotion at the end of the pass.
	Evolve bool
}

// New builds an engine over an opened database and observation log.
func New(db *store.DB, obs *obslog.Log, cfg config.Config) *Engine {
	return &Engine{DB: db, Log: obs, Cfg: cfg, now: time.Now}
}

var passSources = []string{obslog.SourceObservations, obslog.SourceStructural}

// Run executes one lifecycle pass: read new observations, detect candidate
// patterns, apply the confidence lifecycle, and commit instincts, offsets
// and the pass report in a single transaction. Concurrent passes are
// excluded by a lock file; callers get ErrLocked instead of waiting.
func (e *Engine) Run(opts Options) (*Report, error) {
	start := e.now()
	mode := ModeIncremental
	if opts.Replay {
		mode = ModeReplay
	}
	report := newReport(mode, start)

	if !e.Cfg.Observer.Enabled {
		report.Duration = e.now().Sub(start).String()
		return report, nil
	}

	lock, err := AcquireLock(e.Log.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	replay := opts.Replay
	offsets := make(map[string]int64, len(passSources))
	for _, src := range passSources {
		if replay {
			offsets[src] = 0
			continue
		}
		off, err := store.GetOffset(e.DB, src)
		if err != nil {
			// Unusable run state. Fall back to a full replay rather
			// than guessing a resume point.
			log.Printf("warning: %v; replaying %s from the start", err, src)
			replay = true
			for _, s := range passSources {
				offsets[s] = 0
			}
			report.Mode = ModeReplay
			break
		}
		offsets[src] = off
	}

	var window []obslog.Observation
	for _, src := range passSources {
		obs, end, malformed, err := e.Log.ReadFrom(src, offsets[src])
		if errors.Is(err, obslog.ErrOffsetOutOfRange) {
			// Log was truncated or replaced since the last pass.
			log.Printf("warning: stored offset %d beyond end of %s log; replaying from the start", offsets[src], src)
			replay = true
			report.Mode = ModeReplay
			obs, end, malformed, err = e.Log.ReadFrom(src, 0)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s log: %w", src, err)
		}
		window = append(window, obs...)
		report.ObservationsRead += len(obs)
		report.MalformedLines += malformed
		report.Offsets[src] = end
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].Timestamp.Before(window[j].Timestamp)
	})

	candidates := detect.Run(window)
	report.Candidates = len(candidates)

	err = e.DB.WithTx(func(q store.Querier) error {
		instincts, err := store.ListInstincts(q, "")
		if err != nil {
			return err
		}

		var snapshot map[string]bool
		if replay {
			snapshot = make(map[string]bool, len(instincts))
			for _, in := range instincts {
				if in.Status == store.StatusActive {
					snapshot[in.ID] = true
				}
			}
		}

		instincts = e.applyCandidates(instincts, candidates, report, start)
		e.applyDecayAndPruning(instincts, report, start)
		e.applySoftCap(instincts, report)

		survivors, merged := RulesFromConfig(e.Cfg.Instincts).MergeDuplicates(instincts, e.Cfg.Dedup.SimilarityThreshold)
		report.Merged = merged
		for _, id := range merged {
			if err := store.DeleteInstinct(q, id); err != nil {
				return err
			}
		}

		if opts.Evolve {
			skills, err := Evolve(q, survivors, e.Cfg.Evolution.MinClusterSize, e.Cfg.Evolution.MinAverageConfidence, start)
			if err != nil {
				return err
			}
			for _, s := range skills {
				report.Skills = append(report.Skills, s.ID)
			}
		}

		for _, in := range survivors {
			if err := store.SaveInstinct(q, in); err != nil {
				return err
			}
		}
		for src, end := range report.Offsets {
			if err := store.SetOffset(q, src, end); err != nil {
				return err
			}
		}

		if replay {
			report.ReplayDiff = replayDiff(snapshot, survivors, report.Reinforced)
		}
		report.Duration = e.now().Sub(start).String()

		encoded, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return store.SaveReport(q, report.RunID, report.Mode, encoded)
	})
	if err != nil {
		return nil, fmt.Errorf("commit pass: %w", err)
	}
	return report, nil
}

// applyCandidates reinforces existing instincts and creates new ones,
// flagging conflicts. Candidates arrive pre-sorted by category priority.
func (e *Engine) applyCandidates(instincts []*store.Instinct, candidates []detect.Candidate, report *Report, now time.Time) []*store.Instinct {
	rules := RulesFromConfig(e.Cfg.Instincts)
	byID := make(map[string]*store.Instinct, len(instincts))
	for _, in := range instincts {
		byID[in.ID] = in
	}

	for _, c := range candidates {
		id := Slug(c.Domain, c.Trigger)
		if existing, ok := byID[id]; ok {
			if existing.Status != store.StatusActive {
				continue // pruned or conflicted ids are not resurrected
			}
			if other := opposedActive(instincts, existing); other != nil {
				existing.Status = store.StatusConflicted
				other.Status = store.StatusConflicted
				report.Conflicted = append(report.Conflicted, other.ID, existing.ID)
				continue // conflicted pairs are frozen, not reinforced
			}
			rules.Reinforce(existing, c.Sessions, now)
			report.Reinforced = append(report.Reinforced, id)
			continue
		}

		in := rules.NewInstinct(c, now)
		if other := opposedActive(instincts, in); other != nil {
			in.Status = store.StatusConflicted
			other.Status = store.StatusConflicted
			report.Conflicted = append(report.Conflicted, other.ID, in.ID)
		}
		instincts = append(instincts, in)
		byID[id] = in
		if in.Status == store.StatusActive {
			report.Created = append(report.Created, id)
		}
	}
	return instincts
}

// opposedActive finds an active instinct in the same domain whose action is
// semantically opposed to the target's.
func opposedActive(ins []*store.Instinct, target *store.Instinct) *store.Instinct {
	for _, other := range ins {
		if other.ID == target.ID || other.Status != store.StatusActive {
			continue
		}
		if other.Domain == target.Domain && Opposed(other.Action, target.Action) {
			return other
		}
	}
	return nil
}

func (e *Engine) applyDecayAndPruning(instincts []*store.Instinct, report *Report, now time.Time) {
	rules := RulesFromConfig(e.Cfg.Instincts)
	for _, in := range instincts {
		if in.Status != store.StatusActive {
			continue
		}
		if rules.Decay(in, now) > 0 {
			report.Decayed = append(report.Decayed, in.ID)
		}
		if rules.ShouldPrune(in, now) {
			in.Status = store.StatusPruned
			report.Pruned = append(report.Pruned, in.ID)
		}
	}
}

// applySoftCap prunes the lowest-confidence active instincts beyond the
// configured ceiling.
func (e *Engine) applySoftCap(instincts []*store.Instinct, report *Report) {
	limit := e.Cfg.Instincts.MaxInstincts
	if limit <= 0 {
		return
	}
	var active []*store.Instinct
	for _, in := range instincts {
		if in.Status == store.StatusActive {
			active = append(active, in)
		}
	}
	excess := len(active) - limit
	if excess <= 0 {
		return
	}

	// Lowest confidence first, regardless of age or approval.
	sort.Slice(active, func(i, j int) bool {
		if active[i].Confidence != active[j].Confidence {
			return active[i].Confidence < active[j].Confidence
		}
		return active[i].ID < active[j].ID
	})
	for _, in := range active[:excess] {
		in.Status = store.StatusPruned
		report.Pruned = append(report.Pruned, in.ID)
	}
}

// replayDiff compares the post-replay instinct set against the pre-replay
// snapshot. Only ids the pass actually reinforced count as changed;
// surviving untouched records are not part of the diff.
func replayDiff(before map[string]bool, after []*store.Instinct, reinforced []string) *ReplayDiff {
	diff := &ReplayDiff{}
	touched := make(map[string]bool, len(reinforced))
	for _, id := range reinforced {
		touched[id] = true
	}
	seen := make(map[string]bool, len(after))
	for _, in := range after {
		if in.Status != store.StatusActive {
			continue
		}
		seen[in.ID] = true
		if !before[in.ID] {
			diff.Created = append(diff.Created, in.ID)
		} else if touched[in.ID] {
			diff.Reinforced = append(diff.Reinforced, in.ID)
		}
	}
	for id := range before {
		if !seen[id] {
			diff.Pruned = append(diff.Pruned, id)
		}
	}
	sort.Strings(diff.Created)
	sort.Strings(diff.Reinforced)
	sort.Strings(diff.Pruned)
	return diff
}
