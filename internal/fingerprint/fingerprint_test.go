package fingerprint

import (
	"testing"

	"quizdeck/internal/model"
)

func sampleQuiz() model.Quiz {
	return model.Quiz{
		Metadata: model.Metadata{
			Title:         "Go Basics",
			Subject:       "Go",
			QuestionCount: 1,
			Source:        "handwritten",
		},
		Questions: []model.Question{
			{
				ID:          "q1",
				Question:    "What is a goroutine?",
				Options:     []string{"A thread", "A lightweight thread"},
				Answer:      1,
				Explanation: "Goroutines are cheap.",
			},
		},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(sampleQuiz())
	b := Fingerprint(sampleQuiz())
	if a != b {
		t.Errorf("same content produced different digests: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintIgnoresCosmeticFields(t *testing.T) {
	base := Fingerprint(sampleQuiz())

	q := sampleQuiz()
	q.Metadata.Tags = []string{"new", "tags"}
	q.Metadata.Source = "elsewhere"
	q.Metadata.QuestionCount = 99
	q.Questions[0].Explanation = "rewritten explanation"
	q.Questions[0].ID = "renamed"
	if got := Fingerprint(q); got != base {
		t.Error("cosmetic edits changed the digest")
	}
}

func TestFingerprintTracksScoringContent(t *testing.T) {
	base := Fingerprint(sampleQuiz())

	edits := []struct {
		name string
		edit func(*model.Quiz)
	}{
		{"title", func(q *model.Quiz) { q.Metadata.Title = "Go Advanced" }},
		{"subject", func(q *model.Quiz) { q.Metadata.Subject = "Rust" }},
		{"question text", func(q *model.Quiz) { q.Questions[0].Question = "What is a channel?" }},
		{"option text", func(q *model.Quiz) { q.Questions[0].Options[0] = "A process" }},
		{"answer", func(q *model.Quiz) { q.Questions[0].Answer = 0 }},
		{"question added", func(q *model.Quiz) {
			q.Questions = append(q.Questions, model.Question{
				ID: "q2", Question: "x?", Options: []string{"a", "b"}, Answer: 0,
			})
		}},
	}
	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			q := sampleQuiz()
			tt.edit(&q)
			if Fingerprint(q) == base {
				t.Error("digest did not change")
			}
		})
	}
}

func TestFingerprintQuestionOrderMatters(t *testing.T) {
	q := sampleQuiz()
	q.Questions = append(q.Questions, model.Question{
		ID: "q2", Question: "x?", Options: []string{"a", "b"}, Answer: 0, Explanation: "e",
	})
	a := Fingerprint(q)

	q.Questions[0], q.Questions[1] = q.Questions[1], q.Questions[0]
	if Fingerprint(q) == a {
		t.Error("reordering questions should change the digest")
	}
}
