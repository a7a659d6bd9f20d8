package model

import "time"

// SchemaVersion is stamped on every stored record for future migrations.
const SchemaVersion = 2

// Metadata describes a quiz document.
type Metadata struct {
	Title         string   `json:"title"`
	Subject       string   `json:"subject"`
	Source        string   `json:"source,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	QuestionCount int      `json:"questionCount"`
}

// Question is a single multiple-choice question. Answer indexes into Options.
type Question struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation"`
}

// Quiz is an imported quiz document without any repository-assigned fields.
type Quiz struct {
	Metadata  Metadata   `json:"metadata"`
	Questions []Question `json:"questions"`
}

// Record is a quiz as persisted by the repository. The underscored fields are
// owned by the repository and stripped on export.
type Record struct {
	Quiz
	ID            string    `json:"_id"`
	CreatedAt     time.Time `json:"_createdAt"`
	SchemaVersion int       `json:"_schemaVersion"`
	ContentHash   string    `json:"_contentHash"`
}

// Clone deep-copies a record so that an undo snapshot cannot be corrupted by
// later mutation of the live value.
func (r Record) Clone() Record {
	out := r
	out.Quiz = r.Quiz.Clone()
	return out
}

// Clone deep-copies a quiz document.
func (q Quiz) Clone() Quiz {
	out := q
	if q.Metadata.Tags != nil {
		out.Metadata.Tags = append([]string(nil), q.Metadata.Tags...)
	}
	if q.Questions != nil {
		out.Questions = make([]Question, len(q.Questions))
		for i, qq := range q.Questions {
			qq.Options = append([]string(nil), qq.Options...)
			out.Questions[i] = qq
		}
	}
	return out
}

// RecordSummary is the lightweight view used by the recency list.
type RecordSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subject       string    `json:"subject"`
	QuestionCount int       `json:"questionCount"`
	SavedAt       time.Time `json:"savedAt"`
	ContentHash   string    `json:"contentHash"`
}

// QuestionResult is the scored outcome of one question in original order.
// UserAnswer is nil when the question was never answered.
type QuestionResult struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	UserAnswer    *int     `json:"userAnswer"`
	IsCorrect     bool     `json:"isCorrect"`
	Explanation   string   `json:"explanation"`
}

// Result is one completed attempt, appended to a per-quiz bounded history.
type Result struct {
	ID             string           `json:"_id"`
	Date           time.Time        `json:"date"`
	Questions      []QuestionResult `json:"results"`
	Correct        int              `json:"correct"`
	Total          int              `json:"total"`
	Percentage     int              `json:"percentage"`
	Score          string           `json:"score"`
	TimeSpentMs    int64            `json:"timeSpent"`
	ShuffleEnabled bool             `json:"shuffleEnabled"`
	StudyMode      bool             `json:"studyMode"`
}

// SessionState is the resumable snapshot of an in-progress attempt.
// Answers is indexed by original question index; nil means unanswered.
// DisplayOrder maps display position to original question index.
type SessionState struct {
	QuizID         string    `json:"quizId"`
	ContentHash    string    `json:"contentHash"`
	DisplayOrder   []int     `json:"questionOrder"`
	Position       int       `json:"index"`
	Answers        []*int    `json:"answers"`
	StartedAt      time.Time `json:"startTime"`
	ShuffleEnabled bool      `json:"shuffleEnabled"`
	StudyMode      bool      `json:"studyMode"`
}

// AnsweredCount returns how many questions carry an answer.
func (s SessionState) AnsweredCount() int {
	n := 0
	for _, a := range s.Answers {
		if a != nil {
			n++
		}
	}
	return n
}

// DuplicateCheck reports whether a document's content already exists.
type DuplicateCheck struct {
	IsDuplicate   bool   `json:"isDuplicate"`
	ExistingID    string `json:"existingId,omitempty"`
	ExistingTitle string `json:"existingTitle,omitempty"`
}

// BulkDeleteResult lists which ids were removed and which were absent.
type BulkDeleteResult struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// Footprint is a storage size estimate, not an exact quota check.
type Footprint struct {
	RecordCount    int   `json:"recordCount"`
	EstimatedBytes int64 `json:"estimatedBytes"`
}
