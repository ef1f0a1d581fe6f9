package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// segment is a piece of paragraph content with uniform formatting.
type segment struct {
	text string
	bold bool
	brk  bool
}

// Convert turns the body of word/document.xml into plain text and HTML.
//
// Text has one line per paragraph, including paragraphs inside table cells.
// HTML has a <p> per non-empty paragraph with adjacent bold runs merged into
// one <strong>, and tables rendered as <table><tr><td>.
func Convert(documentXML string) (string, string, error) {
	decoder := xml.NewDecoder(strings.NewReader(documentXML))
	decoder.Strict = false

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	containers := []*html.Node{body}

	var text strings.Builder
	var segs []segment
	var (
		inPara, inRun, inRunProps, inText bool
		runBold                           bool
	)

	push := func(a atom.Atom) {
		n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
		containers[len(containers)-1].AppendChild(n)
		containers = append(containers, n)
	}
	pop := func(a atom.Atom) {
		if len(containers) > 1 && containers[len(containers)-1].DataAtom == a {
			containers = containers[:len(containers)-1]
		}
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				push(atom.Table)
			case "tr":
				push(atom.Tr)
			case "tc":
				push(atom.Td)
			case "p":
				inPara = true
				segs = segs[:0]
			case "r":
				if inPara {
					inRun = true
					runBold = false
				}
			case "rPr":
				inRunProps = inRun
			case "b", "bCs":
				// Either flag marks the run bold; CJK text often carries only bCs.
				if inRunProps && boolAttr(t.Attr) {
					runBold = true
				}
			case "t":
				inText = inRun
			case "tab":
				if inRun && !inRunProps {
					segs = append(segs, segment{text: "\t", bold: runBold})
				}
			case "br", "cr":
				if inRun {
					segs = append(segs, segment{brk: true})
				}
			}

		case xml.CharData:
			if inText {
				segs = append(segs, segment{text: string(t), bold: runBold})
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPr":
				inRunProps = false
			case "r":
				inRun = false
				runBold = false
			case "p":
				if inPara {
					flushParagraph(&text, containers[len(containers)-1], segs)
					inPara = false
					segs = segs[:0]
				}
			case "tc":
				pop(atom.Td)
			case "tr":
				pop(atom.Tr)
			case "tbl":
				pop(atom.Table)
			}
		}
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", "", fmt.Errorf("render html: %w", err)
		}
	}

	return strings.TrimRight(text.String(), "\n"), buf.String(), nil
}

// flushParagraph writes one paragraph to the text buffer and, if it has any
// visible content, a <p> element to parent.
func flushParagraph(text *strings.Builder, parent *html.Node, segs []segment) {
	merged := mergeSegments(segs)

	for _, s := range merged {
		if s.brk {
			text.WriteByte('\n')
			continue
		}
		text.WriteString(s.text)
	}
	text.WriteByte('\n')

	visible := false
	for _, s := range merged {
		if !s.brk && strings.TrimSpace(s.text) != "" {
			visible = true
			break
		}
	}
	if !visible {
		return
	}

	p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	for _, s := range merged {
		switch {
		case s.brk:
			p.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		case s.bold:
			strong := &html.Node{Type: html.ElementNode, Data: "strong", DataAtom: atom.Strong}
			strong.AppendChild(&html.Node{Type: html.TextNode, Data: s.text})
			p.AppendChild(strong)
		default:
			p.AppendChild(&html.Node{Type: html.TextNode, Data: s.text})
		}
	}
	parent.AppendChild(p)
}

// mergeSegments joins adjacent segments with the same formatting. Word splits
// runs at arbitrary points (spell-check, revision ids), so a bold "4" can
// arrive as several runs.
func mergeSegments(segs []segment) []segment {
	var out []segment
	for _, s := range segs {
		if s.brk {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 && !out[n-1].brk && out[n-1].bold == s.bold {
			out[n-1].text += s.text
			continue
		}
		out = append(out, s)
	}
	return out
}

// boolAttr reads an OOXML on/off property: present without w:val means on.
func boolAttr(attrs []xml.Attr) bool {
	for _, a := range attrs {
		if a.Name.Local == "val" {
			switch strings.ToLower(a.Value) {
			case "0", "false", "off", "none":
				return false
			}
		}
	}
	return true
}
