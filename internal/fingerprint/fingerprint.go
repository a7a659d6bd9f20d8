// Package fingerprint derives a stable digest of a quiz's scoring-relevant
// content for duplicate detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"quizdeck/internal/model"
)

// The canonical sub-document covers exactly title, subject, and the scoring
// fields of every question. Explanations, tags, and source are excluded so
// cosmetic edits do not register as a new quiz.
type canonicalDoc struct {
	Title     string              `json:"title"`
	Subject   string              `json:"subject"`
	Questions []canonicalQuestion `json:"questions"`
}

type canonicalQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

// Fingerprint returns a deterministic digest of the quiz's canonical
// sub-document. Same content always produces the same string.
func Fingerprint(q model.Quiz) string {
	doc := canonicalDoc{
		Title:     q.Metadata.Title,
		Subject:   q.Metadata.Subject,
		Questions: make([]canonicalQuestion, len(q.Questions)),
	}
	for i, qq := range q.Questions {
		doc.Questions[i] = canonicalQuestion{
			Question: qq.Question,
			Options:  qq.Options,
			Answer:   qq.Answer,
		}
	}
	// Marshaling a plain struct cannot fail.
	data, _ := json.Marshal(doc)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
