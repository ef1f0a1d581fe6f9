// Package docx loads Word documents into two parallel representations: plain
// text with one line per paragraph, and HTML that keeps bold runs as <strong>
// and tables as <table>/<tr>/<td>.
//
// Usage:
//
//	l := docx.New(docx.Config{Timeout: 30 * time.Second})
//	doc, err := l.Load(ctx, "/feedback/Written/Amy/01IPDED2406/Unit 8/8.2 - April 5.docx")
//	var readErr *docx.DocumentReadError
//	if errors.As(err, &readErr) { ... skip file ... }
package docx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	wordx "github.com/nguyenthenguyen/docx"
)

// Document is a loaded .docx file.
type Document struct {
	Path string `json:"path"`
	Text string `json:"text"`
	HTML string `json:"html"`
}

// DocumentReadError reports a file that is missing, corrupt, or not a Word
// document container. It is fatal for that file only.
type DocumentReadError struct {
	Path string
	Err  error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("read document %s: %v", e.Path, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// Config configures the loader.
type Config struct {
	// MaxFileSize is the largest file accepted (default: 50 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Timeout bounds a single load; zero means no limit beyond the caller's context.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Loader reads .docx files. It holds no per-file state and is safe for
// concurrent use.
type Loader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Loader.
func New(cfg Config) *Loader {
	cfg.defaults()
	return &Loader{cfg: cfg, logger: cfg.Logger}
}

// Load reads the document at path.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &DocumentReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("is a directory")}
	}
	if info.Size() > l.cfg.MaxFileSize {
		return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), l.cfg.MaxFileSize)}
	}
	if !IsDocx(path) {
		return nil, &DocumentReadError{Path: path, Err: fmt.Errorf("unsupported format: %q", filepath.Ext(path))}
	}

	return l.load(ctx, path, func() (string, error) {
		r, err := wordx.ReadDocxFile(path)
		if err != nil {
			return "", err
		}
		defer r.Close()
		return r.Editable().GetContent(), nil
	})
}

// LoadBytes reads a document held in memory, such as an upload. name is used
// for error reporting and as the document path.
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) (*Document, error) {
	if int64(len(data)) > l.cfg.MaxFileSize {
		return nil, &DocumentReadError{Path: name, Err: fmt.Errorf("file too large: %d bytes (max %d)", len(data), l.cfg.MaxFileSize)}
	}
	return l.load(ctx, name, func() (string, error) {
		r, err := wordx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return "", err
		}
		defer r.Close()
		return r.Editable().GetContent(), nil
	})
}

// load runs read and the conversion in a goroutine so a hung parse cannot
// outlive the context.
func (l *Loader) load(ctx context.Context, path string, read func() (string, error)) (*Document, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	type result struct {
		doc *Document
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("panic while parsing: %v", p)}
			}
		}()
		content, err := read()
		if err != nil {
			done <- result{err: err}
			return
		}
		if strings.TrimSpace(content) == "" {
			done <- result{err: fmt.Errorf("empty document part")}
			return
		}
		text, html, err := Convert(content)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{doc: &Document{Path: path, Text: text, HTML: html}}
	}()

	select {
	case <-ctx.Done():
		l.logger.Warn("document load abandoned", "path", path, "error", ctx.Err())
		return nil, &DocumentReadError{Path: path, Err: ctx.Err()}
	case r := <-done:
		if r.err != nil {
			return nil, &DocumentReadError{Path: path, Err: r.err}
		}
		l.logger.Debug("loaded document", "path", path, "text_len", len(r.doc.Text), "html_len", len(r.doc.HTML))
		return r.doc, nil
	}
}

// IsDocx reports whether path names a Word document that is not an Office
// lock file.
func IsDocx(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".docx")
}
