package docx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/growthcompass/compass/internal/docx/docxtest"
)

func TestConvertParagraphs(t *testing.T) {
	xml := docxtest.DocumentXML(
		docxtest.P(docxtest.Bold("Student Name: "), docxtest.Plain("Henry")),
		docxtest.P(),
		docxtest.P(docxtest.Plain("That we should ban homework")),
	)

	text, html, err := Convert(xml)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	wantText := "Student Name: Henry\n\nThat we should ban homework"
	if text != wantText {
		t.Errorf("text = %q, want %q", text, wantText)
	}

	wantHTML := "<p><strong>Student Name: </strong>Henry</p><p>That we should ban homework</p>"
	if html != wantHTML {
		t.Errorf("html = %q, want %q", html, wantHTML)
	}
}

func TestConvertMergesBoldRuns(t *testing.T) {
	xml := docxtest.DocumentXML(
		docxtest.P(docxtest.Bold("N"), docxtest.Bold("/"), docxtest.Bold("A"), docxtest.Plain(" noted")),
	)
	_, html, err := Convert(xml)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if html != "<p><strong>N/A</strong> noted</p>" {
		t.Errorf("html = %q", html)
	}
}

func TestConvertTable(t *testing.T) {
	xml := docxtest.DocumentXML(
		docxtest.Table{
			docxtest.RubricRow("Student spoke for the duration of the specified time frame", "4"),
			docxtest.RubricRow("Rebuttal & clash", "N/A"),
		},
	)
	text, html, err := Convert(xml)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if !strings.Contains(html, "<table><tr><td><p>Student spoke for the duration of the specified time frame</p></td><td><p><strong>4</strong></p></td></tr>") {
		t.Errorf("unexpected table html: %q", html)
	}
	if !strings.Contains(html, "Rebuttal &amp; clash") {
		t.Errorf("text in html should be escaped: %q", html)
	}
	if strings.Count(html, "</tr>") != 2 {
		t.Errorf("expected 2 rows, got html %q", html)
	}

	lines := strings.Split(text, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected one line per cell paragraph, got %q", lines)
	}
	if lines[1] != "4" || lines[3] != "N/A" {
		t.Errorf("unexpected text lines: %q", lines)
	}
}

func TestConvertBoldValues(t *testing.T) {
	tests := []struct {
		name string
		rPr  string
		bold bool
	}{
		{"bare", `<w:b/>`, true},
		{"true", `<w:b w:val="true"/>`, true},
		{"one", `<w:b w:val="1"/>`, true},
		{"zero", `<w:b w:val="0"/>`, false},
		{"false", `<w:b w:val="false"/>`, false},
		{"complex script", `<w:bCs/>`, true},
		{"complex script off", `<w:bCs w:val="0"/>`, false},
		{"latin off complex on", `<w:b w:val="0"/><w:bCs/>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xml := `<w:document xmlns:w="x"><w:body><w:p><w:r><w:rPr>` + tt.rPr +
				`</w:rPr><w:t>5</w:t></w:r></w:p></w:body></w:document>`
			_, html, err := Convert(xml)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			got := strings.Contains(html, "<strong>5</strong>")
			if got != tt.bold {
				t.Errorf("bold = %v, want %v (html %q)", got, tt.bold, html)
			}
		})
	}
}

func TestConvertParagraphMarkBoldIgnored(t *testing.T) {
	xml := `<w:document xmlns:w="x"><w:body><w:p><w:pPr><w:rPr><w:b/></w:rPr></w:pPr>` +
		`<w:r><w:t>plain</w:t></w:r><w:r><w:tab/><w:t>after tab</w:t></w:r></w:p></w:body></w:document>`
	text, html, err := Convert(xml)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if strings.Contains(html, "<strong>") {
		t.Errorf("paragraph mark formatting leaked into runs: %q", html)
	}
	if text != "plain\tafter tab" {
		t.Errorf("text = %q", text)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := docxtest.Write(t, dir, "8.2 - April 5.docx",
		docxtest.P(docxtest.Plain("Student: Henry")),
		docxtest.P(docxtest.Plain("That we should ban homework")),
	)

	l := New(Config{})
	doc, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Path != path {
		t.Errorf("Path = %q, want %q", doc.Path, path)
	}
	if doc.Text != "Student: Henry\nThat we should ban homework" {
		t.Errorf("Text = %q", doc.Text)
	}
	if !strings.HasPrefix(doc.HTML, "<p>Student: Henry</p>") {
		t.Errorf("HTML = %q", doc.HTML)
	}
}

func TestLoadBytes(t *testing.T) {
	data := docxtest.Build(t, docxtest.P(docxtest.Bold("Student Name: "), docxtest.Plain("Amy")))

	doc, err := New(Config{}).LoadBytes(context.Background(), "upload.docx", data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if doc.Text != "Student Name: Amy" {
		t.Errorf("Text = %q", doc.Text)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.docx")
	if err := os.WriteFile(corrupt, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	big := docxtest.Write(t, dir, "big.docx", docxtest.P(docxtest.Plain(strings.Repeat("x", 4096))))

	tests := []struct {
		name string
		path string
		cfg  Config
	}{
		{"missing", filepath.Join(dir, "missing.docx"), Config{}},
		{"corrupt", corrupt, Config{}},
		{"wrong extension", filepath.Join(dir, "notes.txt"), Config{}},
		{"too large", big, Config{MaxFileSize: 16}},
		{"directory", dir, Config{}},
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Student: A"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg).Load(context.Background(), tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			var readErr *DocumentReadError
			if !errors.As(err, &readErr) {
				t.Fatalf("expected DocumentReadError, got %T: %v", err, err)
			}
			if readErr.Path != tt.path {
				t.Errorf("Path = %q, want %q", readErr.Path, tt.path)
			}
		})
	}
}

func TestLoadTimeout(t *testing.T) {
	l := New(Config{Timeout: 10 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)

	_, err := l.load(context.Background(), "slow.docx", func() (string, error) {
		<-release
		return "", nil
	})
	var readErr *DocumentReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected DocumentReadError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestIsDocx(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a/b/8.2 - April 5.docx", true},
		{"LESSON.DOCX", true},
		{"a/~$8.2 - April 5.docx", false},
		{"notes.doc", false},
		{"notes.pdf", false},
	}
	for _, tt := range tests {
		if got := IsDocx(tt.path); got != tt.want {
			t.Errorf("IsDocx(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
