package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/growthcompass/compass/internal/docx/docxtest"
	"github.com/growthcompass/compass/internal/i18n"
	"github.com/growthcompass/compass/internal/model"
	"github.com/growthcompass/compass/internal/pipeline"
	"github.com/growthcompass/compass/internal/store"
)

const henryPath = "Written feedback/Alice/01IPDED2406 Tue/Unit 8/8.2 - April 5.docx"

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
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

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	p := pipeline.New(pipeline.Config{Workers: 2}, nil, s)
	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	New(s, p, cfg).Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, srv *httptest.Server, logical string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.docx")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	if logical != "" {
		mw.WriteField("path", logical)
	}
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/feedback/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, srv *httptest.Server, path string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func TestUploadAndQuery(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := upload(t, srv, henryPath, docxtest.Build(t, henryDocument()...))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var sr summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatal(err)
	}
	if sr.Summary.RecordsExtracted != 2 || sr.Summary.Saved.Inserted != 2 {
		t.Errorf("summary = %+v", sr.Summary)
	}
	if !strings.HasPrefix(sr.Message, "1 of 1 files parsed") {
		t.Errorf("message = %q", sr.Message)
	}

	var list struct {
		Count   int                    `json:"count"`
		Records []model.FeedbackRecord `json:"records"`
	}
	getJSON(t, srv, "/api/feedback?class=01IPDED2406&unit=8&lesson=2", http.StatusOK, &list)
	if list.Count != 2 || list.Records[0].StudentNameRaw != "Henry" {
		t.Fatalf("list = %+v", list)
	}
	henry := list.Records[0]
	if henry.Motion == nil || *henry.Motion != "That we should ban homework" {
		t.Errorf("motion = %v", henry.Motion)
	}

	var one model.FeedbackRecord
	getJSON(t, srv, "/api/feedback/"+henry.UniqueID, http.StatusOK, &one)
	if one.UniqueID != henry.UniqueID {
		t.Errorf("get = %+v", one)
	}
	getJSON(t, srv, "/api/feedback/nope", http.StatusNotFound, nil)

	getJSON(t, srv, "/api/feedback?student=selina", http.StatusOK, &list)
	if list.Count != 1 {
		t.Errorf("student filter count = %d", list.Count)
	}

	var students struct {
		Count    int                    `json:"count"`
		Students []model.StudentSummary `json:"students"`
	}
	getJSON(t, srv, "/api/students", http.StatusOK, &students)
	if students.Count != 2 {
		t.Errorf("students = %+v", students)
	}

	var progress model.StudentProgress
	getJSON(t, srv, "/api/students/henry/progress", http.StatusOK, &progress)
	if len(progress.Lessons) != 1 || progress.Categories[model.RubricTimeManagement] != 4 {
		t.Errorf("progress = %+v", progress)
	}
	getJSON(t, srv, "/api/students/nobody/progress", http.StatusNotFound, nil)

	var health map[string]any
	getJSON(t, srv, "/healthz", http.StatusOK, &health)
	if health["status"] != "ok" || health["records"] != float64(2) {
		t.Errorf("health = %v", health)
	}
	if langs, ok := health["languages"].([]any); !ok || len(langs) != 2 {
		t.Errorf("health languages = %v, want en and zh", health["languages"])
	}
}

func TestUploadRejects(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp := upload(t, srv, "notes.txt", []byte("hello"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-docx status = %d, want 400", resp.StatusCode)
	}

	resp = upload(t, srv, "broken.docx", []byte("not a zip"))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("corrupt status = %d, want 422", resp.StatusCode)
	}

	r, err := http.Post(srv.URL+"/api/feedback/upload", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("no multipart status = %d, want 400", r.StatusCode)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	docxtest.Write(t, root, henryPath, henryDocument()...)
	srv := newTestServer(t, Config{Root: root})

	post := func(body string) (int, summaryResponse) {
		t.Helper()
		resp, err := http.Post(srv.URL+"/api/feedback/scan", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var sr summaryResponse
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
				t.Fatal(err)
			}
		}
		return resp.StatusCode, sr
	}

	status, sr := post("")
	if status != http.StatusOK || sr.Summary.Saved.Inserted != 2 {
		t.Fatalf("scan = %d %+v", status, sr.Summary)
	}

	status, sr = post(`{"root":"Written feedback"}`)
	if status != http.StatusOK || sr.Summary.FilesSkipped != 1 {
		t.Errorf("rescan = %d %+v", status, sr.Summary)
	}

	if status, _ := post(`{"root":"../elsewhere"}`); status != http.StatusBadRequest {
		t.Errorf("outside root status = %d, want 400", status)
	}
	if status, _ := post(`{bad`); status != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", status)
	}
}

func TestScanWithoutRoot(t *testing.T) {
	srv := newTestServer(t, Config{})

	resp, err := http.Post(srv.URL+"/api/feedback/scan", "application/json", strings.NewReader(`{"root":"/"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("scan of / without a configured root = %d, want 400", resp.StatusCode)
	}
}

func TestScanRoot(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		requested string
		want      string
		wantErr   bool
	}{
		{"default", "/data", "", "/data", false},
		{"none configured", "", "", "", true},
		{"named folder without root", "", "/etc", "", true},
		{"relative inside", "/data", "Unit 8", "/data/Unit 8", false},
		{"absolute inside", "/data", "/data/a/b", "/data/a/b", false},
		{"escape", "/data", "../etc", "", true},
		{"absolute outside", "/data", "/other", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil, nil, Config{Root: tt.base})
			got, err := h.scanRoot(tt.requested)
			if (err != nil) != tt.wantErr {
				t.Fatalf("scanRoot(%q) error = %v, wantErr %v", tt.requested, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("scanRoot(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}
}
