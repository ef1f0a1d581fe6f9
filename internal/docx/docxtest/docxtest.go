// Package docxtest builds minimal .docx archives for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Run is a span of text with uniform formatting.
type Run struct {
	Text string
	Bold bool
}

// Plain returns a non-bold run.
func Plain(s string) Run { return Run{Text: s} }

// Bold returns a bold run.
func Bold(s string) Run { return Run{Text: s, Bold: true} }

// Block is a top-level body element.
type Block interface {
	writeXML(sb *strings.Builder)
}

// Para is a paragraph.
type Para []Run

// P builds a paragraph from runs.
func P(runs ...Run) Para { return Para(runs) }

func (p Para) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:p>")
	for _, r := range p {
		sb.WriteString("<w:r>")
		if r.Bold {
			sb.WriteString("<w:rPr><w:b/></w:rPr>")
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(sb, []byte(r.Text))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
}

// Cell is a table cell holding paragraphs.
type Cell []Para

// Table is a table of rows of cells.
type Table [][]Cell

func (t Table) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:tbl>")
	for _, row := range t {
		sb.WriteString("<w:tr>")
		for _, cell := range row {
			sb.WriteString("<w:tc>")
			if len(cell) == 0 {
				sb.WriteString("<w:p/>")
			}
			for _, p := range cell {
				p.writeXML(sb)
			}
			sb.WriteString("</w:tc>")
		}
		sb.WriteString("</w:tr>")
	}
	sb.WriteString("</w:tbl>")
}

// Lines turns each line of text into a plain paragraph.
func Lines(text string) []Block {
	var out []Block
	for _, line := range strings.Split(text, "\n") {
		out = append(out, P(Plain(line)))
	}
	return out
}

// RubricRow is a two-column table row: a criterion and a bold score.
func RubricRow(criterion, score string) []Cell {
	return []Cell{{P(Plain(criterion))}, {P(Bold(score))}}
}

// DocumentXML renders the word/document.xml part.
func DocumentXML(blocks ...Block) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, b := range blocks {
		b.writeXML(&sb)
	}
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

// Build returns the bytes of a .docx archive containing blocks.
func Build(t testing.TB, blocks ...Block) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"word/_rels/document.xml.rels", documentRels},
		{"word/document.xml", DocumentXML(blocks...)},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			t.Fatalf("docxtest: create %s: %v", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			t.Fatalf("docxtest: write %s: %v", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("docxtest: close zip: %v", err)
	}
	return buf.Bytes()
}

// Write builds a .docx at dir/rel, creating parent directories, and returns
// its path.
func Write(t testing.TB, dir, rel string, blocks ...Block) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("docxtest: mkdir: %v", err)
	}
	if err := os.WriteFile(path, Build(t, blocks...), 0o644); err != nil {
		t.Fatalf("docxtest: write %s: %v", path, err)
	}
	return path
}
