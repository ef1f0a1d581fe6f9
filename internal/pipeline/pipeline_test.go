package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/growthcompass/compass/internal/docx"
	"github.com/growthcompass/compass/internal/docx/docxtest"
	"github.com/growthcompass/compass/internal/model"
	"github.com/growthcompass/compass/internal/roster"
	"github.com/growthcompass/compass/internal/store"
)

const henryPath = "Written feedback/Alice/01IPDED2406 Tue/Unit 8/8.2 - April 5.docx"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func henryDocument() []docxtest.Block {
	return []docxtest.Block{
		docxtest.P(docxtest.Bold("Student: "), docxtest.Plain("Henry")),
		docxtest.P(docxtest.Plain("That we should ban homework")),
		docxtest.Table{
			docxtest.RubricRow("Student spoke for the duration of the specified time", "4"),
		},
		docxtest.P(docxtest.Plain("Teacher comments: Good pace")),
		docxtest.P(docxtest.Plain("3:45")),
		docxtest.P(docxtest.Bold("Student: "), docxtest.Plain("Selina")),
		docxtest.P(docxtest.Plain("That zoos should close")),
		docxtest.P(docxtest.Plain("Teacher comments: Speak louder")),
		docxtest.P(docxtest.Plain("2:30")),
	}
}

// writeCorpus creates a small feedback tree and returns its root.
func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	docxtest.Write(t, root, henryPath, henryDocument()...)
	docxtest.Write(t, root, "Written feedback/Alice/01IPDED2406 Tue/Unit 8/8.3.docx",
		docxtest.Lines("Student: Amy\nClass Activity\nTeacher comments: Great teamwork")...)
	return root
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	docxtest.Write(t, root, "b/2.docx", docxtest.Lines("x")...)
	docxtest.Write(t, root, "a/1.DOCX", docxtest.Lines("x")...)
	docxtest.Write(t, root, "a/~$1.docx", docxtest.Lines("x")...)
	docxtest.Write(t, root, ".trash/old.docx", docxtest.Lines("x")...)
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{filepath.Join(root, "a", "1.DOCX"), filepath.Join(root, "b", "2.docx")}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, paths[i], want[i])
		}
	}

	if _, err := Discover(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestRunPreservesOrder(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for i := range 8 {
		rel := fmt.Sprintf("01IPDED2406/Unit 1/1.%d.docx", i+1)
		paths = append(paths, docxtest.Write(t, root, rel,
			docxtest.Lines(fmt.Sprintf("Student: S%d\nThat we should test number %d", i, i))...))
	}
	corrupt := filepath.Join(root, "01IPDED2406/Unit 1/1.9.docx")
	if err := os.WriteFile(corrupt, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths = append(paths[:4], append([]string{corrupt}, paths[4:]...)...)

	p := New(Config{Workers: 3}, nil, nil)
	results := p.Run(context.Background(), paths)
	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}

	for i, r := range results {
		if r.Path != paths[i] {
			t.Errorf("result %d path = %q, want %q", i, r.Path, paths[i])
		}
	}

	var readErr *docx.DocumentReadError
	if !errors.As(results[4].Err, &readErr) {
		t.Errorf("corrupt file error = %v, want DocumentReadError", results[4].Err)
	}

	student := 0
	for i, r := range results {
		if i == 4 {
			continue
		}
		if r.Err != nil {
			t.Errorf("result %d: %v", i, r.Err)
			continue
		}
		if len(r.Records) != 1 || r.Records[0].StudentNameRaw != fmt.Sprintf("S%d", student) {
			t.Errorf("result %d records = %+v", i, r.Records)
		}
		student++
	}
}

func TestImport(t *testing.T) {
	root := writeCorpus(t)
	s := newTestStore(t)
	r, err := roster.New(map[string][]string{"Henry Li": {"Henry"}, "Selina Wang": {"Selina"}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	p := New(Config{Workers: 2}, r, s)
	summary, err := p.Import(ctx, root)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.FilesSeen != 2 || summary.FilesParsed != 2 || summary.FilesFailed != 0 {
		t.Errorf("file counts = %+v", summary)
	}
	if summary.RecordsExtracted != 3 || summary.Saved.Inserted != 3 {
		t.Errorf("record counts = %+v", summary)
	}
	if summary.Students != 3 {
		t.Errorf("students = %d", summary.Students)
	}
	if summary.MissingFields[FieldStudentName] != 1 {
		t.Errorf("unresolved names = %d, want 1 (Amy)", summary.MissingFields[FieldStudentName])
	}

	recs, err := s.ListFeedback(ctx, model.FeedbackFilter{Student: "Henry Li"})
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected Henry's record, got %d", len(recs))
	}
	henry := recs[0]
	if henry.ClassCode != "01IPDED2406" || henry.UnitNumber != "8" || henry.LessonNumber != "2" {
		t.Errorf("path fields = %s %s.%s", henry.ClassCode, henry.UnitNumber, henry.LessonNumber)
	}
	if henry.Motion == nil || *henry.Motion != "That we should ban homework" {
		t.Errorf("motion = %v", henry.Motion)
	}
	if henry.Duration == nil || *henry.Duration != "3:45" {
		t.Errorf("duration = %v", henry.Duration)
	}
	if henry.TeacherComments == nil || *henry.TeacherComments != "Good pace" {
		t.Errorf("comments = %v", henry.TeacherComments)
	}
	if henry.RubricScores[model.RubricTimeManagement] != "4" {
		t.Errorf("rubric = %v", henry.RubricScores)
	}

	if v, _ := s.GetMetadata(ctx, store.MetaLastImportRoot); v != root {
		t.Errorf("last import root = %q", v)
	}

	// Unchanged files are skipped on the next run.
	again, err := p.Import(ctx, root)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if again.FilesSkipped != 2 || again.Saved != (model.SaveResult{}) {
		t.Errorf("second import = %+v", again)
	}

	// Forced re-import reproduces the same unique ids.
	forced, err := New(Config{Force: true}, r, s).Import(ctx, root)
	if err != nil {
		t.Fatalf("forced Import: %v", err)
	}
	if forced.Saved != (model.SaveResult{Ignored: 3}) {
		t.Errorf("forced import saved = %+v", forced.Saved)
	}
	count, _ := s.FeedbackCount(ctx)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestImportChangedFileUpdates(t *testing.T) {
	root := t.TempDir()
	s := newTestStore(t)
	ctx := context.Background()
	rel := "01IPDED2406/8.2.docx"

	docxtest.Write(t, root, rel, docxtest.Lines("Student: Amy\nThat we should ban homework\nTeacher comments: Fine")...)
	if _, err := New(Config{}, nil, s).Import(ctx, root); err != nil {
		t.Fatalf("Import: %v", err)
	}

	docxtest.Write(t, root, rel, docxtest.Lines("Student: Amy\nThat we should ban homework\nTeacher comments: Much better")...)
	summary, err := New(Config{Conflict: model.ConflictUpdate}, nil, s).Import(ctx, root)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.Saved != (model.SaveResult{Updated: 1}) {
		t.Errorf("saved = %+v", summary.Saved)
	}
	recs, _ := s.ListFeedback(ctx, model.FeedbackFilter{})
	if len(recs) != 1 || *recs[0].TeacherComments != "Much better" {
		t.Errorf("records = %+v", recs)
	}
}

func TestImportKeepsGoingPastBadFiles(t *testing.T) {
	root := writeCorpus(t)
	bad := filepath.Join(root, "Written feedback/Alice/01IPDED2406 Tue/Unit 8/8.4.docx")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t)

	summary, err := New(Config{}, nil, s).Import(context.Background(), root)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.FilesFailed != 1 || len(summary.Errors) != 1 || summary.Errors[0].Path != bad {
		t.Errorf("failures = %+v", summary.Errors)
	}
	if summary.Saved.Inserted != 3 {
		t.Errorf("inserted = %d", summary.Saved.Inserted)
	}
	if h, _ := s.GetImportedFileHash(context.Background(), bad); h != "" {
		t.Error("failed file should not be marked imported")
	}
}

func TestImportCancelled(t *testing.T) {
	root := writeCorpus(t)
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Config{}, nil, s).Import(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("Import error = %v, want context.Canceled", err)
	}
	count, _ := s.FeedbackCount(context.Background())
	if count != 0 {
		t.Errorf("expected nothing written, got %d", count)
	}
}

func TestImportUpload(t *testing.T) {
	s := newTestStore(t)
	p := New(Config{}, nil, s)
	data := docxtest.Build(t, henryDocument()...)

	summary, err := p.ImportUpload(context.Background(), henryPath, data)
	if err != nil {
		t.Fatalf("ImportUpload: %v", err)
	}
	if summary.Saved.Inserted != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if h, _ := s.GetImportedFileHash(context.Background(), henryPath); h == "" {
		t.Error("upload hash not recorded")
	}

	summary, err = p.ImportUpload(context.Background(), "broken.docx", []byte("nope"))
	if err != nil {
		t.Fatalf("ImportUpload: %v", err)
	}
	if summary.FilesFailed != 1 {
		t.Errorf("broken upload summary = %+v", summary)
	}
}

func TestImportWithoutStore(t *testing.T) {
	if _, err := New(Config{}, nil, nil).Import(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error without store")
	}
}
