package store

import (
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testInstinct(id string) *Instinct {
	now := time.Now().UnixMilli()
	return &Instinct{
		ID:               id,
		Domain:           "tool-preference",
		Category:         "tool-preference",
		Trigger:          "content-search",
		Action:           "prefer rg for content-search",
		Confidence:       0.3,
		Source:           SourceSession,
		Status:           StatusActive,
		Sessions:         []string{"sess-001"},
		CreatedAt:        now,
		LastReinforcedAt: now,
	}
}

func TestMigrate(t *testing.T) {
	db := testDB(t)

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestSaveAndGetInstinct(t *testing.T) {
	db := testDB(t)

	in := testInstinct("tool-preference-content-search")
	if err := SaveInstinct(db, in); err != nil {
		t.Fatalf("SaveInstinct: %v", err)
	}

	found, err := GetInstinct(db, in.ID)
	if err != nil {
		t.Fatalf("GetInstinct: %v", err)
	}
	if found == nil {
		t.Fatal("expected instinct, got nil")
	}
	if found.Action != in.Action {
		t.Errorf("action = %q, want %q", found.Action, in.Action)
	}
	if len(found.Sessions) != 1 || found.Sessions[0] != "sess-001" {
		t.Errorf("sessions = %v, want [sess-001]", found.Sessions)
	}
}

func TestGetInstinctMissing(t *testing.T) {
	db := testDB(t)

	found, err := GetInstinct(db, "no-such-id")
	if err != nil {
		t.Fatalf("GetInstinct: %v", err)
	}
	if found != nil {
		t.Error("expected nil for missing id")
	}
}

func TestSaveInstinctUpsert(t *testing.T) {
	db := testDB(t)

	in := testInstinct("tool-preference-content-search")
	SaveInstinct(db, in)

	in.Confidence = 0.4
	in.AddSession("sess-002")
	if err := SaveInstinct(db, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	found, _ := GetInstinct(db, in.ID)
	if found.Confidence != 0.4 {
		t.Errorf("confidence = %f, want 0.4", found.Confidence)
	}
	if len(found.Sessions) != 2 {
		t.Errorf("sessions = %v, want 2 entries", found.Sessions)
	}

	count, _ := CountInstincts(db, StatusActive)
	if count != 1 {
		t.Errorf("count = %d, want 1 after upsert", count)
	}
}

func TestListInstinctsByStatus(t *testing.T) {
	db := testDB(t)

	active := testInstinct("active-one")
	SaveInstinct(db, active)

	pruned := testInstinct("pruned-one")
	pruned.Status = StatusPruned
	SaveInstinct(db, pruned)

	got, err := ListInstincts(db, StatusActive)
	if err != nil {
		t.Fatalf("ListInstincts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "active-one" {
		t.Errorf("active list = %v", got)
	}

	all, _ := ListInstincts(db, "")
	if len(all) != 2 {
		t.Errorf("all list has %d entries, want 2", len(all))
	}
}

func TestListInstinctsOrderedByConfidence(t *testing.T) {
	db := testDB(t)

	low := testInstinct("low")
	low.Confidence = 0.3
	high := testInstinct("high")
	high.Confidence = 0.8
	SaveInstinct(db, low)
	SaveInstinct(db, high)

	got, _ := ListInstincts(db, StatusActive)
	if got[0].ID != "high" {
		t.Errorf("first = %s, want high", got[0].ID)
	}
}

func TestAddSessionUniqueSorted(t *testing.T) {
	in := testInstinct("x")
	in.AddSession("sess-003")
	in.AddSession("sess-001") // duplicate
	in.AddSession("sess-002")

	want := []string{"sess-001", "sess-002", "sess-003"}
	if len(in.Sessions) != 3 {
		t.Fatalf("sessions = %v", in.Sessions)
	}
	for i, s := range want {
		if in.Sessions[i] != s {
			t.Errorf("sessions[%d] = %s, want %s", i, in.Sessions[i], s)
		}
	}
}

func TestOffsets(t *testing.T) {
	db := testDB(t)

	off, err := GetOffset(db, "observations")
	if err != nil {
		t.Fatalf("GetOffset fresh: %v", err)
	}
	if off != 0 {
		t.Errorf("fresh offset = %d, want 0", off)
	}

	if err := SetOffset(db, "observations", 42); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}
	off, _ = GetOffset(db, "observations")
	if off != 42 {
		t.Errorf("offset = %d, want 42", off)
	}

	// Offsets only advance through SetOffset; an overwrite sticks.
	SetOffset(db, "observations", 100)
	off, _ = GetOffset(db, "observations")
	if off != 100 {
		t.Errorf("offset = %d, want 100", off)
	}
}

func TestGetOffsetCorrupt(t *testing.T) {
	db := testDB(t)

	db.Exec(`INSERT INTO run_state (source, last_offset, last_run_at) VALUES ('observations', -5, 0)`)
	_, err := GetOffset(db, "observations")
	if err == nil {
		t.Fatal("expected error for negative offset")
	}
}

func TestSkillRoundTrip(t *testing.T) {
	db := testDB(t)

	s := &Skill{
		ID:            "skill-workflow-abc123",
		Domain:        "workflow",
		MemberIDs:     []string{"a", "b", "c"},
		AvgConfidence: 0.6,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := SaveSkill(db, s); err != nil {
		t.Fatalf("SaveSkill: %v", err)
	}

	found, err := GetSkill(db, s.ID)
	if err != nil {
		t.Fatalf("GetSkill: %v", err)
	}
	if found == nil {
		t.Fatal("expected skill, got nil")
	}
	if len(found.MemberIDs) != 3 {
		t.Errorf("members = %v", found.MemberIDs)
	}
	if found.LastTriggeredAt != nil {
		t.Error("fresh skill should have no last_triggered_at")
	}
}

func TestEvolvedGroupFingerprint(t *testing.T) {
	db := testDB(t)

	seen, err := HasEvolvedGroup(db, "fp-1")
	if err != nil {
		t.Fatalf("HasEvolvedGroup: %v", err)
	}
	if seen {
		t.Error("unexpected fingerprint before save")
	}

	s := &Skill{ID: "skill-x", Domain: "workflow", MemberIDs: []string{"a"}, CreatedAt: 1}
	SaveSkill(db, s)
	if err := SaveEvolvedGroup(db, "fp-1", "workflow", "skill-x"); err != nil {
		t.Fatalf("SaveEvolvedGroup: %v", err)
	}

	seen, _ = HasEvolvedGroup(db, "fp-1")
	if !seen {
		t.Error("fingerprint not recorded")
	}
}

func TestRecordSkillUsageDeduplicates(t *testing.T) {
	db := testDB(t)

	s := &Skill{ID: "skill-x", Domain: "workflow", MemberIDs: []string{"a"}, CreatedAt: 1}
	SaveSkill(db, s)

	fresh, err := RecordSkillUsage(db, "skill-x", "evt-1")
	if err != nil {
		t.Fatalf("RecordSkillUsage: %v", err)
	}
	if !fresh {
		t.Error("first event should be fresh")
	}

	fresh, _ = RecordSkillUsage(db, "skill-x", "evt-1")
	if fresh {
		t.Error("replayed event should not be fresh")
	}

	found, _ := GetSkill(db, "skill-x")
	if found.TriggerCount != 1 {
		t.Errorf("trigger_count = %d, want 1", found.TriggerCount)
	}
	if found.LastTriggeredAt == nil {
		t.Error("expected last_triggered_at after usage")
	}
}

func TestReports(t *testing.T) {
	db := testDB(t)

	latest, err := LatestReport(db)
	if err != nil {
		t.Fatalf("LatestReport empty: %v", err)
	}
	if latest != nil {
		t.Error("expected nil before any pass")
	}

	SaveReport(db, "run-1", "incremental", []byte(`{"run_id":"run-1"}`))
	time.Sleep(2 * time.Millisecond)
	SaveReport(db, "run-2", "replay", []byte(`{"run_id":"run-2"}`))

	latest, _ = LatestReport(db)
	if string(latest) != `{"run_id":"run-2"}` {
		t.Errorf("latest = %s", latest)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := testDB(t)

	err := db.WithTx(func(q Querier) error {
		if err := SaveInstinct(q, testInstinct("doomed")); err != nil {
			return err
		}
		return errTest
	})
	if err == nil {
		t.Fatal("expected error from WithTx")
	}

	found, _ := GetInstinct(db, "doomed")
	if found != nil {
		t.Error("instinct survived a rolled-back transaction")
	}
}

var errTest = errForTest{}

type errForTest struct{}

func (errForTest) Error() string { return "test error" }
