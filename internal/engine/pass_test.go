package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/obslog"
	"github.com/lazypower/instinct/internal/store"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(db, obslog.Open(t.TempDir()), config.Default())
}

func appendBash(t *testing.T, l *obslog.Log, session, command string, success bool) {
	t.Helper()
	obs := &obslog.Observation{
		Timestamp: time.Now(),
		SessionID: session,
		Tool:      obslog.ToolBash,
		Input:     obslog.InputSummary{CommandPreview: command},
		Output:    obslog.OutputSummary{Success: success},
	}
	if err := l.Append(obslog.SourceObservations, obs, 0); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

// appendSearchEvidence writes enough rg usage across two sessions to clear
// the tool-preference gate.
func appendSearchEvidence(t *testing.T, l *obslog.Log) {
	t.Helper()
	for i := 0; i < 3; i++ {
		appendBash(t, l, "sess-001", fmt.Sprintf("rg pattern%d", i), true)
	}
	appendBash(t, l, "sess-002", "rg other", true)
	appendBash(t, l, "sess-002", "rg more", true)
	appendBash(t, l, "sess-002", "grep legacy", true)
}

const searchInstinctID = "tool-preference-performing-a-content-search-task"

func TestPassCreatesInstinct(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeIncremental {
		t.Errorf("mode = %s", report.Mode)
	}
	if report.ObservationsRead != 6 {
		t.Errorf("observations read = %d, want 6", report.ObservationsRead)
	}
	if len(report.Created) == 0 {
		t.Fatalf("nothing created; report %+v", report)
	}

	in, err := store.GetInstinct(e.DB, searchInstinctID)
	if err != nil {
		t.Fatalf("GetInstinct: %v", err)
	}
	if in == nil {
		t.Fatal("rg preference instinct not stored")
	}
	if in.Confidence != 0.3 {
		t.Errorf("confidence = %f, want 0.3", in.Confidence)
	}
	if in.AutoApproved {
		t.Error("fresh instinct should not be auto-approved")
	}
	if len(in.Sessions) != 2 {
		t.Errorf("sessions = %v", in.Sessions)
	}

	// Offsets committed with the pass.
	off, _ := store.GetOffset(e.DB, obslog.SourceObservations)
	if off != 6 {
		t.Errorf("offset = %d, want 6", off)
	}

	// Report persisted.
	data, _ := store.LatestReport(e.DB)
	if data == nil {
		t.Error("pass report not saved")
	}
}

func TestPassIncrementalReinforces(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)
	if _, err := e.Run(Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Same pattern again in fresh observations.
	appendSearchEvidence(t, e.Log)
	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(report.Created) != 0 {
		t.Errorf("second pass created %v, want reinforcement only", report.Created)
	}
	if len(report.Reinforced) != 1 || report.Reinforced[0] != searchInstinctID {
		t.Errorf("reinforced = %v", report.Reinforced)
	}
	// Only the new window was read.
	if report.ObservationsRead != 6 {
		t.Errorf("observations read = %d, want 6", report.ObservationsRead)
	}

	in, _ := store.GetInstinct(e.DB, searchInstinctID)
	if diff := in.Confidence - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %f, want 0.4", in.Confidence)
	}
}

func TestPassNoNewObservations(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)
	e.Run(Options{})

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("idle Run: %v", err)
	}
	if report.ObservationsRead != 0 || report.Candidates != 0 {
		t.Errorf("idle pass read %d observations, %d candidates", report.ObservationsRead, report.Candidates)
	}
}

func TestPassReplayDiff(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)
	if _, err := e.Run(Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	report, err := e.Run(Options{Replay: true})
	if err != nil {
		t.Fatalf("replay Run: %v", err)
	}
	if report.Mode != ModeReplay {
		t.Errorf("mode = %s", report.Mode)
	}
	if report.ObservationsRead != 6 {
		t.Errorf("replay read %d, want full log of 6", report.ObservationsRead)
	}
	if report.ReplayDiff == nil {
		t.Fatal("no replay diff")
	}
	// The instinct already existed, so the replay reinforces, creates nothing.
	if len(report.ReplayDiff.Created) != 0 {
		t.Errorf("diff created = %v, want none", report.ReplayDiff.Created)
	}
	if len(report.ReplayDiff.Reinforced) != 1 {
		t.Errorf("diff reinforced = %v, want 1", report.ReplayDiff.Reinforced)
	}
}

func TestPassLockContention(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)

	lock, err := AcquireLock(e.Log.Dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	_, err = e.Run(Options{})
	if !errors.Is(err, ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
}

func TestPassCorruptRunStateFallsBackToReplay(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)
	e.DB.Exec(`INSERT INTO run_state (source, last_offset, last_run_at) VALUES ('observations', -7, 0)`)

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run with corrupt state: %v", err)
	}
	if report.Mode != ModeReplay {
		t.Errorf("mode = %s, want replay fallback", report.Mode)
	}
	if report.ObservationsRead != 6 {
		t.Errorf("read %d, want full log", report.ObservationsRead)
	}

	// The corrupt offset was repaired by the commit.
	off, err := store.GetOffset(e.DB, obslog.SourceObservations)
	if err != nil {
		t.Fatalf("offset still corrupt: %v", err)
	}
	if off != 6 {
		t.Errorf("offset = %d, want 6", off)
	}
}

func TestPassOffsetBeyondEndFallsBackToReplay(t *testing.T) {
	e := testEngine(t)
	appendSearchEvidence(t, e.Log)
	store.SetOffset(e.DB, obslog.SourceObservations, 999)

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Mode != ModeReplay {
		t.Errorf("mode = %s, want replay fallback", report.Mode)
	}
	if report.ObservationsRead != 6 {
		t.Errorf("read %d, want 6", report.ObservationsRead)
	}
}

func TestPassObserverDisabled(t *testing.T) {
	e := testEngine(t)
	e.Cfg.Observer.Enabled = false
	appendSearchEvidence(t, e.Log)

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ObservationsRead != 0 {
		t.Errorf("disabled observer still read %d observations", report.ObservationsRead)
	}
}

func TestPassConflictDetection(t *testing.T) {
	e := testEngine(t)

	// Existing instinct with the opposite stance in the same domain.
	now := time.Now()
	existing := &store.Instinct{
		ID:               "tool-preference-avoid-rg",
		Domain:           "tool-preference",
		Category:         "tool-preference",
		Trigger:          "searching code",
		Action:           "avoid rg for content-search",
		Confidence:       0.5,
		Source:           store.SourceSession,
		Status:           store.StatusActive,
		CreatedAt:        now.UnixMilli(),
		LastReinforcedAt: now.UnixMilli(),
	}
	if err := store.SaveInstinct(e.DB, existing); err != nil {
		t.Fatal(err)
	}

	appendSearchEvidence(t, e.Log)
	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Conflicted) != 2 {
		t.Fatalf("conflicted = %v, want both sides", report.Conflicted)
	}

	old, _ := store.GetInstinct(e.DB, existing.ID)
	if old.Status != store.StatusConflicted {
		t.Errorf("existing status = %s, want conflicted", old.Status)
	}
	fresh, _ := store.GetInstinct(e.DB, searchInstinctID)
	if fresh == nil || fresh.Status != store.StatusConflicted {
		t.Errorf("new instinct status = %+v, want conflicted", fresh)
	}
}

func TestPassSoftCap(t *testing.T) {
	e := testEngine(t)
	e.Cfg.Instincts.MaxInstincts = 2

	now := time.Now()
	for i := 0; i < 3; i++ {
		in := &store.Instinct{
			ID:               fmt.Sprintf("instinct-%d", i),
			Domain:           fmt.Sprintf("domain-%d", i),
			Category:         "tool-preference",
			Trigger:          fmt.Sprintf("trigger %d", i),
			Action:           fmt.Sprintf("take action %d", i),
			Confidence:       0.3 + float64(i)*0.1,
			Source:           store.SourceSession,
			Status:           store.StatusActive,
			CreatedAt:        now.UnixMilli(),
			LastReinforcedAt: now.UnixMilli(),
		}
		if err := store.SaveInstinct(e.DB, in); err != nil {
			t.Fatal(err)
		}
	}

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Pruned) != 1 || report.Pruned[0] != "instinct-0" {
		t.Errorf("pruned = %v, want weakest instinct-0", report.Pruned)
	}

	count, _ := store.CountInstincts(e.DB, store.StatusActive)
	if count != 2 {
		t.Errorf("active count = %d, want 2", count)
	}
}

func TestPassSoftCapIgnoresApproval(t *testing.T) {
	e := testEngine(t)
	e.Cfg.Instincts.MaxInstincts = 1

	now := time.Now()
	approved := activeInstinct("low-approved", 0.25, now)
	approved.Domain = "workflow"
	approved.Trigger = "starting a refactor"
	approved.Action = "run the tests first"
	approved.AutoApproved = true
	if err := store.SaveInstinct(e.DB, approved); err != nil {
		t.Fatal(err)
	}
	strong := activeInstinct("high-unapproved", 0.6, now)
	if err := store.SaveInstinct(e.DB, strong); err != nil {
		t.Fatal(err)
	}

	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Lowest confidence goes first, approved or not.
	if len(report.Pruned) != 1 || report.Pruned[0] != "low-approved" {
		t.Errorf("pruned = %v, want low-approved", report.Pruned)
	}
	survivor, _ := store.GetInstinct(e.DB, "high-unapproved")
	if survivor == nil || survivor.Status != store.StatusActive {
		t.Errorf("survivor = %+v, want active high-unapproved", survivor)
	}
}

func TestEvolvePromotesCluster(t *testing.T) {
	e := testEngine(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		in := &store.Instinct{
			ID:               fmt.Sprintf("workflow-%d", i),
			Domain:           "workflow",
			Category:         "workflow-sequence",
			Trigger:          fmt.Sprintf("workflow trigger %d", i),
			Action:           fmt.Sprintf("workflow action %d", i),
			Confidence:       0.6,
			Source:           store.SourceSession,
			Status:           store.StatusActive,
			CreatedAt:        now.UnixMilli(),
			LastReinforcedAt: now.UnixMilli(),
		}
		if err := store.SaveInstinct(e.DB, in); err != nil {
			t.Fatal(err)
		}
	}

	report, err := e.Run(Options{Evolve: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Skills) != 1 {
		t.Fatalf("skills = %v, want 1", report.Skills)
	}

	skills, _ := store.ListSkills(e.DB)
	if len(skills) != 1 {
		t.Fatalf("stored skills = %d", len(skills))
	}
	s := skills[0]
	if s.Domain != "workflow" || len(s.MemberIDs) != 3 {
		t.Errorf("skill = %+v", s)
	}
	if diff := s.AvgConfidence - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg confidence = %f", s.AvgConfidence)
	}

	// Members carry the back-reference.
	member, _ := store.GetInstinct(e.DB, "workflow-0")
	if member.SkillID != s.ID {
		t.Errorf("member skill id = %q, want %q", member.SkillID, s.ID)
	}

	// A second evolve pass does not re-promote the same group.
	report, err = e.Run(Options{Evolve: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(report.Skills) != 0 {
		t.Errorf("re-evolved skills = %v", report.Skills)
	}
}

func TestEvolveRepromotesOnMembershipChange(t *testing.T) {
	e := testEngine(t)

	now := time.Now()
	seed := func(i int) {
		in := &store.Instinct{
			ID:               fmt.Sprintf("workflow-%d", i),
			Domain:           "workflow",
			Category:         "workflow-sequence",
			Trigger:          fmt.Sprintf("workflow trigger %d", i),
			Action:           fmt.Sprintf("workflow action %d", i),
			Confidence:       0.6,
			Source:           store.SourceSession,
			Status:           store.StatusActive,
			CreatedAt:        now.UnixMilli(),
			LastReinforcedAt: now.UnixMilli(),
		}
		if err := store.SaveInstinct(e.DB, in); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		seed(i)
	}

	report, err := e.Run(Options{Evolve: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Skills) != 1 {
		t.Fatalf("skills = %v, want 1", report.Skills)
	}
	first := report.Skills[0]

	// A new member changes the group fingerprint, so the cluster
	// qualifies again.
	seed(3)
	report, err = e.Run(Options{Evolve: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(report.Skills) != 1 {
		t.Fatalf("skills after membership change = %v, want 1", report.Skills)
	}
	second := report.Skills[0]
	if second == first {
		t.Fatalf("skill id %q did not change with membership", second)
	}

	s, err := store.GetSkill(e.DB, second)
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if s == nil || len(s.MemberIDs) != 4 {
		t.Fatalf("skill = %+v, want 4 members", s)
	}
	member, _ := store.GetInstinct(e.DB, "workflow-0")
	if member.SkillID != second {
		t.Errorf("member skill id = %q, want %q", member.SkillID, second)
	}

	// With no further changes the 4-member group stays settled.
	report, err = e.Run(Options{Evolve: true})
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if len(report.Skills) != 0 {
		t.Errorf("unchanged group re-evolved: %v", report.Skills)
	}
}

func TestEvolveAverageBoundary(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	cluster := func(domain string, confidences ...float64) []*store.Instinct {
		var ins []*store.Instinct
		for i, c := range confidences {
			ins = append(ins, &store.Instinct{
				ID:               fmt.Sprintf("%s-%d", domain, i),
				Domain:           domain,
				Category:         "workflow-sequence",
				Trigger:          fmt.Sprintf("%s trigger %d", domain, i),
				Action:           fmt.Sprintf("%s action %d", domain, i),
				Confidence:       c,
				Source:           store.SourceSession,
				Status:           store.StatusActive,
				CreatedAt:        now.UnixMilli(),
				LastReinforcedAt: now.UnixMilli(),
			})
		}
		return ins
	}

	// Average exactly at the threshold qualifies.
	skills, err := Evolve(e.DB, cluster("exact", 0.5, 0.5, 0.5), 3, 0.5, now)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if len(skills) != 1 {
		t.Errorf("average 0.5 cluster produced %d skills, want 1", len(skills))
	}

	// Just below does not.
	skills, err = Evolve(e.DB, cluster("under", 0.49, 0.49, 0.49), 3, 0.5, now)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if len(skills) != 0 {
		t.Errorf("average 0.49 cluster produced %d skills, want 0", len(skills))
	}

	// Two members never qualify, however confident.
	skills, err = Evolve(e.DB, cluster("pair", 0.9, 0.9), 3, 0.5, now)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if len(skills) != 0 {
		t.Errorf("two-member cluster produced %d skills, want 0", len(skills))
	}
}

func TestEvolveRejectsLowConfidenceCluster(t *testing.T) {
	e := testEngine(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		in := &store.Instinct{
			ID:               fmt.Sprintf("weak-%d", i),
			Domain:           "workflow",
			Category:         "workflow-sequence",
			Trigger:          fmt.Sprintf("weak trigger %d", i),
			Action:           fmt.Sprintf("weak action %d", i),
			Confidence:       0.3,
			Source:           store.SourceSession,
			Status:           store.StatusActive,
			CreatedAt:        now.UnixMilli(),
			LastReinforcedAt: now.UnixMilli(),
		}
		store.SaveInstinct(e.DB, in)
	}

	report, err := e.Run(Options{Evolve: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Skills) != 0 {
		t.Errorf("low-confidence cluster evolved: %v", report.Skills)
	}
}

func TestApplySkillUsage(t *testing.T) {
	e := testEngine(t)

	now := time.Now()
	in := activeInstinct("member-a", 0.5, now)
	in.ID = "member-a"
	store.SaveInstinct(e.DB, in)

	s := &store.Skill{
		ID:            "skill-test",
		Domain:        "tool-preference",
		MemberIDs:     []string{"member-a"},
		AvgConfidence: 0.5,
		CreatedAt:     now.UnixMilli(),
	}
	store.SaveSkill(e.DB, s)

	fresh, err := e.ApplySkillUsage("skill-test", "evt-1")
	if err != nil {
		t.Fatalf("ApplySkillUsage: %v", err)
	}
	if !fresh {
		t.Error("first event should be fresh")
	}

	member, _ := store.GetInstinct(e.DB, "member-a")
	if diff := member.Confidence - 0.52; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("member confidence = %f, want 0.52", member.Confidence)
	}

	// Replaying the same event changes nothing.
	fresh, _ = e.ApplySkillUsage("skill-test", "evt-1")
	if fresh {
		t.Error("replayed event should not be fresh")
	}
	member, _ = store.GetInstinct(e.DB, "member-a")
	if diff := member.Confidence - 0.52; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence after replay = %f", member.Confidence)
	}

	// The skill row keeps its creation-time snapshot; only the usage
	// counters move.
	got, err := store.GetSkill(e.DB, "skill-test")
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if diff := got.AvgConfidence - 0.5; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("avg confidence = %f, want creation-time 0.5", got.AvgConfidence)
	}
	if got.TriggerCount != 1 {
		t.Errorf("trigger count = %d, want 1", got.TriggerCount)
	}
	if got.LastTriggeredAt == nil {
		t.Error("last triggered timestamp not recorded")
	}
}

func TestReplayDiffIgnoresUntouchedSurvivors(t *testing.T) {
	e := testEngine(t)
	seedInstinct(t, e, "untouched", "workflow", "starting a task", "read the file before editing", 0.5)

	report, err := e.Run(Options{Replay: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ReplayDiff == nil {
		t.Fatal("replay pass produced no diff")
	}
	d := report.ReplayDiff
	if len(d.Created) != 0 || len(d.Reinforced) != 0 || len(d.Pruned) != 0 {
		t.Errorf("diff = %+v, want empty for a survivor the pass never touched", d)
	}
}

func TestPassConflictBlocksReinforcement(t *testing.T) {
	e := testEngine(t)

	now := time.Now()
	existing := activeInstinct(searchInstinctID, 0.4, now)
	if err := store.SaveInstinct(e.DB, existing); err != nil {
		t.Fatal(err)
	}
	rival := activeInstinct("avoid-rg", 0.5, now)
	rival.Trigger = "searching code"
	rival.Action = "avoid rg for content-search"
	if err := store.SaveInstinct(e.DB, rival); err != nil {
		t.Fatal(err)
	}

	appendSearchEvidence(t, e.Log)
	report, err := e.Run(Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Reinforced) != 0 {
		t.Errorf("reinforced = %v, want none across a conflicted pair", report.Reinforced)
	}
	if len(report.Conflicted) != 2 {
		t.Errorf("conflicted = %v, want both sides", report.Conflicted)
	}

	for _, id := range []string{searchInstinctID, "avoid-rg"} {
		in, _ := store.GetInstinct(e.DB, id)
		if in.Status != store.StatusConflicted {
			t.Errorf("%s status = %s, want conflicted", id, in.Status)
		}
	}
	in, _ := store.GetInstinct(e.DB, searchInstinctID)
	if diff := in.Confidence - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %f, want frozen at 0.4", in.Confidence)
	}
}
