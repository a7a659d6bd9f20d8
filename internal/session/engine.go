// Package session owns the in-progress quiz attempt: display ordering,
// per-question answer state, mode flags, scoring, and resume.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"quizdeck/internal/model"
)

var (
	// ErrNoSession is returned when an operation requires an in-progress attempt.
	ErrNoSession = errors.New("no quiz session in progress")
	// ErrSessionActive is returned when Start is called over an in-progress attempt.
	ErrSessionActive = errors.New("a quiz session is already in progress")
	// ErrStaleSession is returned when a snapshot no longer matches the stored quiz.
	ErrStaleSession = errors.New("saved session no longer matches the stored quiz")
)

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Options are the per-attempt mode flags.
type Options struct {
	Shuffle bool `json:"shuffle"`
	Study   bool `json:"study"`
}

// Repository receives the result of a completed attempt.
type Repository interface {
	AppendResult(quizID string, r model.Result) error
}

// SnapshotStore mirrors the resumable session state on every answer and
// navigation, and clears it when the attempt ends.
type SnapshotStore interface {
	SaveSession(st model.SessionState) error
	ClearSession() error
}

// Feedback is the immediate per-question feedback exposed in study mode.
type Feedback struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

// Engine drives one attempt at a time through
// Idle -> InProgress -> Completed -> Idle. HTTP handlers call it from
// concurrent goroutines, so mu guards all attempt state.
type Engine struct {
	repo      Repository
	snapshots SnapshotStore

	mu        sync.Mutex
	rng       *rand.Rand
	now       func() time.Time
	state     State
	record    model.Record
	order     []int  // display position -> original question index
	position  int    // current display position
	answers   []*int // original question index -> selected option, nil = unanswered
	startedAt time.Time
	opts      Options
	result    *model.Result
}

func New(repo Repository, snapshots SnapshotStore) *Engine {
	return &Engine{
		repo:      repo,
		snapshots: snapshots,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:       time.Now,
		state:     StateIdle,
	}
}

// NewWithRand is for deterministic shuffles in tests.
func NewWithRand(repo Repository, snapshots SnapshotStore, rng *rand.Rand, now func() time.Time) *Engine {
	e := New(repo, snapshots)
	e.rng = rng
	e.now = now
	return e
}

// Start begins a fresh attempt on record. Valid from Idle or Completed.
func (e *Engine) Start(rec model.Record, opts Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInProgress {
		return ErrSessionActive
	}
	n := len(rec.Questions)
	e.record = rec.Clone()
	e.order = e.buildOrder(n, opts.Shuffle)
	e.position = 0
	e.answers = make([]*int, n)
	e.startedAt = e.now()
	e.opts = opts
	e.result = nil
	e.state = StateInProgress
	return e.persist()
}

func (e *Engine) buildOrder(n int, shuffle bool) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		e.rng.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

// SelectAnswer records the option chosen at a display position, keyed by the
// original question index so redisplay order never corrupts scoring.
// Re-answering overwrites the prior choice. In study mode the returned
// Feedback reveals correctness without advancing.
func (e *Engine) SelectAnswer(displayPos, option int) (*Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return nil, ErrNoSession
	}
	if displayPos < 0 || displayPos >= len(e.order) {
		return nil, fmt.Errorf("question position %d out of range", displayPos)
	}
	orig := e.order[displayPos]
	q := e.record.Questions[orig]
	if option < 0 || option >= len(q.Options) {
		return nil, fmt.Errorf("option %d out of range for question %d", option, displayPos)
	}

	chosen := option
	e.answers[orig] = &chosen
	if err := e.persist(); err != nil {
		return nil, err
	}

	if !e.opts.Study {
		return nil, nil
	}
	return &Feedback{
		Correct:       option == q.Answer,
		CorrectAnswer: q.Answer,
		Explanation:   q.Explanation,
	}, nil
}

// Navigate moves the current position. It never mutates answers.
func (e *Engine) Navigate(toPosition int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return ErrNoSession
	}
	if toPosition < 0 || toPosition >= len(e.order) {
		return fmt.Errorf("question position %d out of range", toPosition)
	}
	e.position = toPosition
	return e.persist()
}

// FirstUnanswered returns the display position of the first unanswered
// question in original authoring order, so a caller can route the user back
// before forcing submission.
func (e *Engine) FirstUnanswered() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for orig := range e.answers {
		if e.answers[orig] == nil {
			return e.displayIndex(orig), true
		}
	}
	return 0, false
}

// Submit scores the attempt in original question order, hands the result to
// the repository, and clears the session snapshot. Unanswered questions score
// as incorrect; the engine never blocks submission over them — callers consult
// FirstUnanswered first. If the repository rejects the result the attempt
// stays in progress; once the result is recorded the attempt completes even
// when clearing the snapshot fails, so a retry cannot record it twice.
func (e *Engine) Submit() (model.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return model.Result{}, ErrNoSession
	}

	total := len(e.record.Questions)
	correct := 0
	questions := make([]model.QuestionResult, total)
	for i, q := range e.record.Questions {
		userAnswer := e.answers[i]
		isCorrect := userAnswer != nil && *userAnswer == q.Answer
		if isCorrect {
			correct++
		}
		questions[i] = model.QuestionResult{
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.Answer,
			UserAnswer:    userAnswer,
			IsCorrect:     isCorrect,
			Explanation:   q.Explanation,
		}
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(correct) / float64(total)))
	}

	res := model.Result{
		Questions:      questions,
		Correct:        correct,
		Total:          total,
		Percentage:     percentage,
		Score:          fmt.Sprintf("%d/%d", correct, total),
		TimeSpentMs:    e.now().Sub(e.startedAt).Milliseconds(),
		ShuffleEnabled: e.opts.Shuffle,
		StudyMode:      e.opts.Study,
	}

	if err := e.repo.AppendResult(e.record.ID, res); err != nil {
		return model.Result{}, fmt.Errorf("record result: %w", err)
	}
	e.state = StateCompleted
	e.result = &res
	if err := e.snapshots.ClearSession(); err != nil {
		slog.Warn("clear session snapshot after submit", "quiz", e.record.ID, "error", err)
	}
	return res, nil
}

// Restart begins a new attempt on the same quiz, regenerating the shuffle
// when shuffle mode is active.
func (e *Engine) Restart() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return ErrNoSession
	}
	e.order = e.buildOrder(len(e.record.Questions), e.opts.Shuffle)
	e.position = 0
	e.answers = make([]*int, len(e.record.Questions))
	e.startedAt = e.now()
	e.result = nil
	e.state = StateInProgress
	return e.persist()
}

// Resume restores a previously persisted snapshot verbatim: same display
// order, answers, position, and mode flags. It never regenerates the shuffle.
// Snapshots whose content hash no longer matches the stored record are
// rejected as stale.
func (e *Engine) Resume(st model.SessionState, rec model.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInProgress {
		return ErrSessionActive
	}
	n := len(rec.Questions)
	if st.QuizID != rec.ID || st.ContentHash != rec.ContentHash {
		return ErrStaleSession
	}
	if !isPermutation(st.DisplayOrder, n) || len(st.Answers) != n {
		return ErrStaleSession
	}
	if st.Position < 0 || st.Position >= n {
		return ErrStaleSession
	}

	e.record = rec.Clone()
	e.order = append([]int(nil), st.DisplayOrder...)
	e.position = st.Position
	e.answers = append([]*int(nil), st.Answers...)
	e.startedAt = st.StartedAt
	e.opts = Options{Shuffle: st.ShuffleEnabled, Study: st.StudyMode}
	e.result = nil
	e.state = StateInProgress
	return e.persist()
}

// Abandon discards the attempt and clears the snapshot.
func (e *Engine) Abandon() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateIdle {
		return nil
	}
	e.state = StateIdle
	e.record = model.Record{}
	e.result = nil
	return e.snapshots.ClearSession()
}

// ===== accessors =====

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Record returns the quiz under attempt.
func (e *Engine) Record() model.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record
}

// Position returns the current display position.
func (e *Engine) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// DisplayOrder returns a copy of the display permutation.
func (e *Engine) DisplayOrder() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.order...)
}

// OriginalIndex maps a display position to the original question index.
func (e *Engine) OriginalIndex(displayPos int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order[displayPos]
}

// DisplayIndex maps an original question index back to its display position.
func (e *Engine) DisplayIndex(originalIdx int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayIndex(originalIdx)
}

// displayIndex scans the permutation; question counts are small.
// Callers hold mu.
func (e *Engine) displayIndex(originalIdx int) int {
	for pos, orig := range e.order {
		if orig == originalIdx {
			return pos
		}
	}
	return -1
}

// Question returns the question shown at a display position along with the
// recorded answer, if any.
func (e *Engine) Question(displayPos int) (model.Question, *int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return model.Question{}, nil, ErrNoSession
	}
	if displayPos < 0 || displayPos >= len(e.order) {
		return model.Question{}, nil, fmt.Errorf("question position %d out of range", displayPos)
	}
	orig := e.order[displayPos]
	return e.record.Questions[orig], e.answers[orig], nil
}

// AnsweredCount returns how many questions carry an answer.
func (e *Engine) AnsweredCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, a := range e.answers {
		if a != nil {
			n++
		}
	}
	return n
}

// Result returns the scored outcome once the attempt is completed.
func (e *Engine) Result() (model.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCompleted || e.result == nil {
		return model.Result{}, false
	}
	return *e.result, true
}

// Snapshot builds the resumable session state.
func (e *Engine) Snapshot() model.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// snapshot builds the session state. Callers hold mu.
func (e *Engine) snapshot() model.SessionState {
	return model.SessionState{
		QuizID:         e.record.ID,
		ContentHash:    e.record.ContentHash,
		DisplayOrder:   append([]int(nil), e.order...),
		Position:       e.position,
		Answers:        append([]*int(nil), e.answers...),
		StartedAt:      e.startedAt,
		ShuffleEnabled: e.opts.Shuffle,
		StudyMode:      e.opts.Study,
	}
}

// persist mirrors the snapshot to the store. Callers hold mu.
func (e *Engine) persist() error {
	return e.snapshots.SaveSession(e.snapshot())
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
