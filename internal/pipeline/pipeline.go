// Package pipeline drives a batch import: it finds feedback documents under a
// root folder, loads them in parallel, extracts records from each one in
// document order, and writes the batch to storage in file order.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/growthcompass/compass/internal/docx"
	"github.com/growthcompass/compass/internal/extract"
	"github.com/growthcompass/compass/internal/model"
)

const defaultWorkers = 4

// Store is the storage the pipeline writes to.
type Store interface {
	SaveFeedback(ctx context.Context, recs []model.FeedbackRecord, mode model.ConflictMode) (model.SaveResult, error)
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
	RecordImport(ctx context.Context, root string, at time.Time) error
}

// Config configures a Pipeline.
type Config struct {
	// Workers bounds concurrent document loads (default 4).
	Workers int
	// LoadTimeout bounds a single document load; zero means no limit.
	LoadTimeout time.Duration
	MaxFileSize int64
	Conflict    model.ConflictMode
	// Force re-imports files whose content hash is already recorded.
	Force      bool
	Delimiters []string
	Logger     *slog.Logger
}

// FileResult is the outcome of processing one document.
type FileResult struct {
	Path    string                 `json:"path"`
	Hash    string                 `json:"hash,omitempty"`
	Records []model.FeedbackRecord `json:"records"`
	Skipped bool                   `json:"skipped,omitempty"`
	Err     error                  `json:"-"`
}

type Pipeline struct {
	cfg       Config
	loader    *docx.Loader
	extractor *extract.Extractor
	store     Store
	logger    *slog.Logger
}

// New creates a Pipeline. store may be nil for parse-only use; resolver may be
// nil to leave student names unresolved.
func New(cfg Config, resolver extract.Resolver, store Store) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Conflict == "" {
		cfg.Conflict = model.ConflictIgnore
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		cfg: cfg,
		loader: docx.New(docx.Config{
			MaxFileSize: cfg.MaxFileSize,
			Timeout:     cfg.LoadTimeout,
			Logger:      cfg.Logger,
		}),
		extractor: &extract.Extractor{
			Delimiters: cfg.Delimiters,
			Resolver:   resolver,
			Logger:     cfg.Logger,
		},
		store:  store,
		logger: cfg.Logger,
	}
}

// Discover returns the .docx files under root in lexical order, skipping
// Office lock files.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if docx.IsDocx(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// Run loads and extracts every path. Results are in input order; a failed
// document yields a result with Err set and does not affect the others.
func (p *Pipeline) Run(ctx context.Context, paths []string) []FileResult {
	return p.run(ctx, paths, nil)
}

// skipFunc reports whether a document with the given content hash can be
// skipped.
type skipFunc func(ctx context.Context, path, hash string) bool

func (p *Pipeline) run(ctx context.Context, paths []string, skip skipFunc) []FileResult {
	results := make([]FileResult, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, path := range paths {
		g.Go(func() error {
			results[i] = p.process(gCtx, path, skip)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) process(ctx context.Context, path string, skip skipFunc) FileResult {
	res := FileResult{Path: path}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	if skip != nil {
		hash, err := hashFile(path)
		if err == nil {
			res.Hash = hash
			if skip(ctx, path, hash) {
				p.logger.Info("document unchanged, skipping", "path", path)
				res.Skipped = true
				return res
			}
		}
	}

	doc, err := p.loader.Load(ctx, path)
	if err != nil {
		p.logger.Warn("failed to load document", "path", path, "error", err)
		res.Err = err
		return res
	}
	res.Records = p.extractor.Extract(doc.Text, doc.HTML, path)
	p.logger.Info("processed document", "path", path, "records", len(res.Records))
	return res
}

// ParseUpload extracts records from a document held in memory. logicalPath
// stands in for the file's location when deriving class, unit and lesson.
func (p *Pipeline) ParseUpload(ctx context.Context, logicalPath string, data []byte) ([]model.FeedbackRecord, error) {
	doc, err := p.loader.LoadBytes(ctx, logicalPath, data)
	if err != nil {
		return nil, err
	}
	return p.extractor.Extract(doc.Text, doc.HTML, logicalPath), nil
}

// Import processes every document under root and stores the valid records.
// Documents whose content hash was recorded by an earlier import are skipped
// unless Force is set.
func (p *Pipeline) Import(ctx context.Context, root string) (model.ImportSummary, error) {
	if p.store == nil {
		return model.ImportSummary{}, fmt.Errorf("import: no store configured")
	}
	paths, err := Discover(root)
	if err != nil {
		return model.ImportSummary{}, err
	}
	p.logger.Info("discovered documents", "root", root, "count", len(paths))

	skip := p.unchanged
	if p.cfg.Force {
		skip = func(context.Context, string, string) bool { return false }
	}
	results := p.run(ctx, paths, skip)

	summary, err := p.save(ctx, results)
	if err != nil {
		return summary, err
	}
	if err := p.store.RecordImport(ctx, root, time.Now()); err != nil {
		p.logger.Warn("failed to record import", "root", root, "error", err)
	}
	return summary, nil
}

// ImportUpload stores the records of one uploaded document.
func (p *Pipeline) ImportUpload(ctx context.Context, logicalPath string, data []byte) (model.ImportSummary, error) {
	if p.store == nil {
		return model.ImportSummary{}, fmt.Errorf("import: no store configured")
	}
	res := FileResult{Path: logicalPath, Hash: hashBytes(data)}
	recs, err := p.ParseUpload(ctx, logicalPath, data)
	if err != nil {
		p.logger.Warn("failed to load upload", "path", logicalPath, "error", err)
		res.Err = err
	}
	res.Records = recs
	return p.save(ctx, []FileResult{res})
}

// save validates and writes the records of results in file order, then
// records the content hash of every file that was read successfully.
func (p *Pipeline) save(ctx context.Context, results []FileResult) (model.ImportSummary, error) {
	summary := Summarize(results)
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	var valid []model.FeedbackRecord
	for _, r := range results {
		for _, rec := range r.Records {
			if err := rec.Validate(); err != nil {
				p.logger.Warn("dropping invalid record", "path", r.Path, "student", rec.StudentNameRaw, "error", err)
				summary.RecordsInvalid++
				continue
			}
			valid = append(valid, rec)
		}
	}

	saved, err := p.store.SaveFeedback(ctx, valid, p.cfg.Conflict)
	if err != nil {
		return summary, fmt.Errorf("save feedback: %w", err)
	}
	summary.Saved = saved

	for _, r := range results {
		if r.Err != nil || r.Skipped || r.Hash == "" {
			continue
		}
		if err := p.store.SetImportedFileHash(ctx, r.Path, r.Hash); err != nil {
			return summary, fmt.Errorf("record import for %s: %w", r.Path, err)
		}
	}
	return summary, nil
}

func (p *Pipeline) unchanged(ctx context.Context, path, hash string) bool {
	stored, err := p.store.GetImportedFileHash(ctx, path)
	if err != nil {
		p.logger.Warn("failed to check import status", "path", path, "error", err)
		return false
	}
	return stored == hash
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
