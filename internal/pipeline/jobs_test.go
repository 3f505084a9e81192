package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/report"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	if ContentHashHex([]byte("aaa")) == ContentHashHex([]byte("bbb")) {
		t.Error("expected different hashes for different inputs")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("test-1", researcher(3), nil)
	if job.Status != StatusQueued {
		t.Fatalf("expected new job to be queued, got %q", job.Status)
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusExtracting, "extracting"},
		{StatusEmbedding, "embedding"},
		{StatusRanking, "ranking"},
		{StatusRefining, "refining"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_Finish(t *testing.T) {
	job := NewJob("done", researcher(3), []Input{BytesInput("a.txt", nil)})
	job.Finish(&report.Report{})

	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.Phase != "done" {
		t.Errorf("expected completed/done, got %s/%s", snap.Status, snap.Phase)
	}
	if snap.Report == nil {
		t.Error("expected report in snapshot")
	}
	if job.Inputs() != nil {
		t.Error("expected inputs to be released")
	}
}

func TestJob_FinishWithExclusionsIsPartial(t *testing.T) {
	job := NewJob("partial", researcher(3), nil)
	job.Finish(&report.Report{Excluded: []report.Excluded{{Document: "x.pdf", Stage: "extract"}}})
	if job.Snapshot().Status != StatusPartial {
		t.Errorf("expected partial, got %s", job.Snapshot().Status)
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("fail", researcher(3), nil)
	job.SetStatus(StatusEmbedding, "embedding")
	job.Fail("embedding", errors.New("embedding timed out"))

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "embedding" {
		t.Errorf("expected failed/embedding, got %s/%s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 || snap.Progress.Errors[0] != "embedding timed out" {
		t.Errorf("unexpected errors %v", snap.Progress.Errors)
	}
	if snap.Report != nil {
		t.Error("expected no report for failed job")
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("doc 3 failed")
	job.AddError("doc 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "doc 3 failed" {
		t.Errorf("expected first error %q, got %q", "doc 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_Counts(t *testing.T) {
	job := &Job{ID: "count-test", UpdatedAt: time.Now()}
	job.SetCounts(4, 17)
	job.AddExclusion(document.Exclusion{DocumentID: "a.pdf"})
	job.AddExclusion(document.Exclusion{DocumentID: "b.pdf"})
	job.AddWarning("duplicate upload skipped: c.pdf")

	snap := job.Snapshot()
	if snap.Progress.Documents != 4 || snap.Progress.Sections != 17 {
		t.Errorf("expected 4 documents / 17 sections, got %+v", snap.Progress)
	}
	if snap.Progress.Excluded != 2 {
		t.Errorf("expected 2 exclusions, got %d", snap.Progress.Excluded)
	}
	if len(snap.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", snap.Warnings)
	}
}

func TestJob_FinishCarriesSubmissionWarnings(t *testing.T) {
	job := &Job{ID: "warn-test", UpdatedAt: time.Now()}
	job.AddWarning("duplicate upload skipped: copy.pdf (same content as a.pdf)")

	job.Finish(&report.Report{Warnings: []string{"expected 3-10 documents, got 2"}})

	snap := job.Snapshot()
	if snap.Report == nil {
		t.Fatal("expected report")
	}
	want := []string{
		"duplicate upload skipped: copy.pdf (same content as a.pdf)",
		"expected 3-10 documents, got 2",
	}
	if len(snap.Report.Warnings) != len(want) {
		t.Fatalf("report warnings = %v, want %v", snap.Report.Warnings, want)
	}
	for i := range want {
		if snap.Report.Warnings[i] != want[i] {
			t.Errorf("warning %d = %q, want %q", i, snap.Report.Warnings[i], want[i])
		}
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	// Snapshot should always return non-nil slices.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Warnings == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	store.Put(&Job{ID: "store-1", UpdatedAt: time.Now()})

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)
	store.Put(&Job{ID: "old", UpdatedAt: time.Now()})

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	store.Put(&Job{ID: "new", UpdatedAt: time.Now()})
	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
