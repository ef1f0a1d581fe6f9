package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/growthcompass/compass/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// New opens the database named by dsn. A postgres:// or postgresql:// URL
// selects PostgreSQL; anything else is a SQLite file path (or ":memory:").
func New(dsn string) (*Store, error) {
	driver, source := "sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if isPostgres(dsn) {
		driver, source = "postgres", dsn
	}
	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// One connection: SQLite serializes writers, and every connection to
		// ":memory:" would otherwise be a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DriverName reports the SQL driver in use.
func (s *Store) DriverName() string {
	return s.db.DriverName()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		unique_id TEXT PRIMARY KEY,
		student_name_raw TEXT NOT NULL,
		student_name TEXT,
		class_code TEXT NOT NULL,
		unit_number TEXT NOT NULL,
		lesson_number TEXT NOT NULL,
		section_index INTEGER NOT NULL DEFAULT 0,
		instructor TEXT NOT NULL DEFAULT '',
		feedback_type TEXT NOT NULL DEFAULT '',
		motion TEXT,
		motion_kind TEXT NOT NULL DEFAULT '',
		rubric_scores TEXT NOT NULL DEFAULT '{}',
		teacher_comments TEXT,
		duration TEXT,
		source_file_path TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_student ON feedback (student_name);
	CREATE INDEX IF NOT EXISTS idx_feedback_lesson ON feedback (class_code, unit_number, lesson_number);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS compass_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const feedbackColumns = `unique_id, student_name_raw, student_name, class_code, unit_number, lesson_number,
	section_index, instructor, feedback_type, motion, motion_kind, rubric_scores,
	teacher_comments, duration, source_file_path, created_at`

const insertFeedback = `INSERT INTO feedback (` + feedbackColumns + `)
	VALUES (:unique_id, :student_name_raw, :student_name, :class_code, :unit_number, :lesson_number,
	:section_index, :instructor, :feedback_type, :motion, :motion_kind, :rubric_scores,
	:teacher_comments, :duration, :source_file_path, :created_at)
	ON CONFLICT (unique_id) DO NOTHING`

const updateFeedback = `UPDATE feedback SET
	student_name_raw = :student_name_raw, student_name = :student_name,
	class_code = :class_code, unit_number = :unit_number, lesson_number = :lesson_number,
	section_index = :section_index, instructor = :instructor, feedback_type = :feedback_type,
	motion = :motion, motion_kind = :motion_kind, rubric_scores = :rubric_scores,
	teacher_comments = :teacher_comments, duration = :duration,
	source_file_path = :source_file_path, updated_at = CURRENT_TIMESTAMP
	WHERE unique_id = :unique_id`

// SaveFeedback writes recs in order inside one transaction. A record whose
// unique_id already exists is left alone in ignore mode and overwritten in
// update mode. Either all records are written or none are.
func (s *Store) SaveFeedback(ctx context.Context, recs []model.FeedbackRecord, mode model.ConflictMode) (model.SaveResult, error) {
	var res model.SaveResult
	if len(recs) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range recs {
		if r.RubricScores == nil {
			r.RubricScores = model.RubricScores{}
		}
		out, err := tx.NamedExecContext(ctx, insertFeedback, r)
		if err != nil {
			return model.SaveResult{}, fmt.Errorf("insert %s: %w", r.UniqueID, err)
		}
		n, err := out.RowsAffected()
		if err != nil {
			return model.SaveResult{}, err
		}
		if n > 0 {
			res.Inserted++
			continue
		}
		if mode != model.ConflictUpdate {
			res.Ignored++
			continue
		}
		if _, err := tx.NamedExecContext(ctx, updateFeedback, r); err != nil {
			return model.SaveResult{}, fmt.Errorf("update %s: %w", r.UniqueID, err)
		}
		res.Updated++
	}

	if err := tx.Commit(); err != nil {
		return model.SaveResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// ListFeedback returns records matching filter, ordered by class, unit,
// lesson and section index. Student matches the resolved name, or the raw
// name for unresolved records, case-insensitively.
func (s *Store) ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]model.FeedbackRecord, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE 1=1`
	var args []any
	if filter.Student != "" {
		query += ` AND LOWER(COALESCE(student_name, student_name_raw)) = LOWER(?)`
		args = append(args, filter.Student)
	}
	if filter.Class != "" {
		query += ` AND class_code = ?`
		args = append(args, filter.Class)
	}
	if filter.Unit != "" {
		query += ` AND unit_number = ?`
		args = append(args, filter.Unit)
	}
	if filter.Lesson != "" {
		query += ` AND lesson_number = ?`
		args = append(args, filter.Lesson)
	}
	query += ` ORDER BY class_code, CAST(unit_number AS INTEGER), CAST(lesson_number AS INTEGER), section_index, source_file_path`

	recs := []model.FeedbackRecord{}
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return recs, nil
}

// GetFeedback returns the record with the given unique_id.
func (s *Store) GetFeedback(ctx context.Context, uniqueID string) (model.FeedbackRecord, error) {
	var r model.FeedbackRecord
	err := s.db.GetContext(ctx, &r,
		s.db.Rebind(`SELECT `+feedbackColumns+` FROM feedback WHERE unique_id = ?`), uniqueID)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("feedback %s: %w", uniqueID, ErrNotFound)
	}
	return r, err
}

// FeedbackCount returns the number of stored records.
func (s *Store) FeedbackCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM feedback`)
	return count, err
}

// ListStudents returns one summary per student, by resolved name where
// known, in name order.
func (s *Store) ListStudents(ctx context.Context) ([]model.StudentSummary, error) {
	students := []model.StudentSummary{}
	err := s.db.SelectContext(ctx, &students, `
		SELECT COALESCE(student_name, student_name_raw) AS name,
		       COUNT(*) AS records,
		       COUNT(DISTINCT class_code) AS classes
		FROM feedback
		GROUP BY COALESCE(student_name, student_name_raw)
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// StudentProgress returns a student's rubric results in lesson order.
func (s *Store) StudentProgress(ctx context.Context, student string) (model.StudentProgress, error) {
	recs, err := s.ListFeedback(ctx, model.FeedbackFilter{Student: student})
	if err != nil {
		return model.StudentProgress{}, err
	}
	if len(recs) == 0 {
		return model.StudentProgress{}, fmt.Errorf("student %q: %w", student, ErrNotFound)
	}
	model.SortRecords(recs)
	return model.BuildProgress(recs[0].DisplayName(), recs), nil
}

func now() time.Time {
	return time.Now().UTC()
}
