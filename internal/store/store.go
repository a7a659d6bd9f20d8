// Package store owns all persisted state: the quiz-record mapping, the
// recency list, per-quiz bounded result histories, and the single resumable
// session snapshot. Everything lives in one SQLite key-value table with
// whole-value replace-on-write semantics; corrupt serialized values are
// treated as absent on read, never propagated.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizdeck/internal/fingerprint"
	"quizdeck/internal/model"

	_ "modernc.org/sqlite"
)

const (
	keyQuizzes       = "quizzes"
	keyRecent        = "recent"
	keySession       = "session"
	resultsKeyPrefix = "results-"

	recentLimit  = 20
	resultsLimit = 20

	// QuotaBytes is the practical size budget for the whole store. Footprint
	// estimates are compared against it by callers; it is not enforced here.
	QuotaBytes = 5 * 1024 * 1024
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`)
	return err
}

// ===== key-value plumbing =====

func (s *Store) getRaw(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return value, err
}

func (s *Store) setRaw(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

func upsertTx(tx *sql.Tx, key string, value []byte) error {
	_, err := tx.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// readJSON loads and decodes one value. Missing or corrupt entries report
// false; the store self-heals on read rather than failing.
func (s *Store) readJSON(key string, dest any) bool {
	raw, err := s.getRaw(key)
	if err != nil {
		slog.Warn("store read failed, treating as empty", "key", key, "error", err)
		return false
	}
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("corrupt store entry, treating as empty", "key", key, "error", err)
		return false
	}
	return true
}

func resultsKey(quizID string) string {
	return resultsKeyPrefix + quizID
}

func (s *Store) loadQuizzes() map[string]model.Record {
	quizzes := make(map[string]model.Record)
	s.readJSON(keyQuizzes, &quizzes)
	return quizzes
}

func (s *Store) loadRecent() []string {
	var ids []string
	s.readJSON(keyRecent, &ids)
	return ids
}

// ===== duplicate detection =====

// CheckDuplicate reports whether an existing record shares the document's
// content fingerprint.
func (s *Store) CheckDuplicate(q model.Quiz) model.DuplicateCheck {
	hash := fingerprint.Fingerprint(q)
	for id, rec := range s.loadQuizzes() {
		if rec.ContentHash == hash {
			return model.DuplicateCheck{
				IsDuplicate:   true,
				ExistingID:    id,
				ExistingTitle: rec.Metadata.Title,
			}
		}
	}
	return model.DuplicateCheck{}
}

// ===== save =====

// Save persists a quiz document unless an existing record shares its content
// fingerprint, in which case it returns a *model.DuplicateError and persists
// nothing.
func (s *Store) Save(q model.Quiz) (model.Record, error) {
	if dup := s.CheckDuplicate(q); dup.IsDuplicate {
		return model.Record{}, &model.DuplicateError{
			ExistingID:    dup.ExistingID,
			ExistingTitle: dup.ExistingTitle,
		}
	}
	return s.persist(q, "")
}

// ForceSave persists regardless of duplicates. A non-empty id resurrects that
// identity (undo-restore) or overwrites the record that currently holds it;
// an empty id assigns a fresh one.
func (s *Store) ForceSave(q model.Quiz, id string) (model.Record, error) {
	return s.persist(q, id)
}

func (s *Store) persist(q model.Quiz, id string) (model.Record, error) {
	quizzes := s.loadQuizzes()
	if id == "" {
		id = generateID(quizzes, q.Metadata.Title, s.now())
	}

	rec := model.Record{
		Quiz:          q.Clone(),
		ID:            id,
		CreatedAt:     s.now(),
		SchemaVersion: model.SchemaVersion,
		ContentHash:   fingerprint.Fingerprint(q),
	}
	quizzes[id] = rec

	quizzesRaw, err := json.Marshal(quizzes)
	if err != nil {
		return model.Record{}, fmt.Errorf("serialize quizzes: %w", err)
	}
	recentRaw, err := json.Marshal(pushRecent(s.loadRecent(), id))
	if err != nil {
		return model.Record{}, fmt.Errorf("serialize recent list: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return model.Record{}, fmt.Errorf("save quiz: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTx(tx, keyQuizzes, quizzesRaw); err != nil {
		return model.Record{}, fmt.Errorf("save quiz: %w", err)
	}
	if err := upsertTx(tx, keyRecent, recentRaw); err != nil {
		return model.Record{}, fmt.Errorf("save recent list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, fmt.Errorf("save quiz: %w", err)
	}

	slog.Info("saved quiz", "id", id, "title", q.Metadata.Title, "questions", len(q.Questions))
	return rec, nil
}

// pushRecent moves id to the front, deduplicated, capped at recentLimit.
func pushRecent(recent []string, id string) []string {
	out := make([]string, 0, len(recent)+1)
	out = append(out, id)
	for _, rid := range recent {
		if rid != id {
			out = append(out, rid)
		}
	}
	if len(out) > recentLimit {
		out = out[:recentLimit]
	}
	return out
}

// generateID derives a record id from the slugified title and the creation
// instant, bumped until unused so rapid saves of the same title stay distinct.
func generateID(quizzes map[string]model.Record, title string, now time.Time) string {
	slug := slugify(title)
	ts := now.UnixMilli()
	id := fmt.Sprintf("%s-%d", slug, ts)
	for _, taken := quizzes[id]; taken; _, taken = quizzes[id] {
		ts++
		id = fmt.Sprintf("%s-%d", slug, ts)
	}
	return id
}

func slugify(title string) string {
	if title == "" {
		title = "quiz"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	slug := b.String()
	if len(slug) > 20 {
		slug = slug[:20]
	}
	return slug
}

// ===== read =====

// Get returns the record for id, or model.ErrNotFound.
func (s *Store) Get(id string) (model.Record, error) {
	rec, ok := s.loadQuizzes()[id]
	if !ok {
		return model.Record{}, model.ErrNotFound
	}
	return rec, nil
}

// ListRecent returns metadata summaries in most-recent-first order. Ids with
// no backing record are skipped.
func (s *Store) ListRecent() []model.RecordSummary {
	quizzes := s.loadQuizzes()
	var out []model.RecordSummary
	for _, id := range s.loadRecent() {
		rec, ok := quizzes[id]
		if !ok {
			continue
		}
		out = append(out, model.RecordSummary{
			ID:            id,
			Title:         rec.Metadata.Title,
			Subject:       rec.Metadata.Subject,
			QuestionCount: rec.Metadata.QuestionCount,
			SavedAt:       rec.CreatedAt,
			ContentHash:   rec.ContentHash,
		})
	}
	return out
}

// ===== delete =====

// Delete removes the record, its recency-list entry, its entire result
// history, and the session snapshot if it references the quiz, together.
// It reports false when the id is absent.
func (s *Store) Delete(id string) (bool, error) {
	quizzes := s.loadQuizzes()
	if _, ok := quizzes[id]; !ok {
		return false, nil
	}
	delete(quizzes, id)

	recent := s.loadRecent()
	kept := recent[:0]
	for _, rid := range recent {
		if rid != id {
			kept = append(kept, rid)
		}
	}

	quizzesRaw, err := json.Marshal(quizzes)
	if err != nil {
		return false, fmt.Errorf("serialize quizzes: %w", err)
	}
	recentRaw, err := json.Marshal(kept)
	if err != nil {
		return false, fmt.Errorf("serialize recent list: %w", err)
	}

	clearSession := false
	if st, ok := s.LoadSession(); ok && st.QuizID == id {
		clearSession = true
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTx(tx, keyQuizzes, quizzesRaw); err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	if err := upsertTx(tx, keyRecent, recentRaw); err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, resultsKey(id)); err != nil {
		return false, fmt.Errorf("delete results: %w", err)
	}
	if clearSession {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, keySession); err != nil {
			return false, fmt.Errorf("clear session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}

	slog.Info("deleted quiz", "id", id)
	return true, nil
}

// DeleteMany deletes each id independently and reports which succeeded.
func (s *Store) DeleteMany(ids []string) (model.BulkDeleteResult, error) {
	var out model.BulkDeleteResult
	for _, id := range ids {
		ok, err := s.Delete(id)
		if err != nil {
			return out, err
		}
		if ok {
			out.Succeeded = append(out.Succeeded, id)
		} else {
			out.Failed = append(out.Failed, id)
		}
	}
	return out, nil
}

// ClearAll wipes every persisted value, results and session snapshot included.
func (s *Store) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	slog.Info("cleared all stored data")
	return nil
}

// ===== results =====

// AppendResult appends one attempt to the quiz's bounded history. The oldest
// appended entry is evicted past resultsLimit, keyed by append order rather
// than the entry's date field.
func (s *Store) AppendResult(quizID string, r model.Result) error {
	if _, ok := s.loadQuizzes()[quizID]; !ok {
		return model.ErrNotFound
	}
	if r.ID == "" {
		r.ID = "result-" + uuid.NewString()
	}
	if r.Date.IsZero() {
		r.Date = s.now()
	}

	var history []model.Result
	s.readJSON(resultsKey(quizID), &history)
	history = append(history, r)
	if len(history) > resultsLimit {
		history = history[len(history)-resultsLimit:]
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("serialize results: %w", err)
	}
	if err := s.setRaw(resultsKey(quizID), raw); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

// ListResults returns the quiz's result history, oldest first. Absent or
// corrupt histories read as empty.
func (s *Store) ListResults(quizID string) []model.Result {
	var history []model.Result
	s.readJSON(resultsKey(quizID), &history)
	return history
}

// ===== footprint =====

// Footprint estimates store size from the serialized record set plus all
// result histories. Callers decide warning thresholds.
func (s *Store) Footprint() model.Footprint {
	quizzes := s.loadQuizzes()
	var bytes int64
	if raw, err := s.getRaw(keyQuizzes); err == nil {
		bytes += int64(len(raw))
	}
	for id := range quizzes {
		if raw, err := s.getRaw(resultsKey(id)); err == nil {
			bytes += int64(len(raw))
		}
	}
	return model.Footprint{RecordCount: len(quizzes), EstimatedBytes: bytes}
}
