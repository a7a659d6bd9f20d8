// Package validate checks untrusted quiz documents against the quiz schema.
// It never panics on malformed input and accumulates every violation in one
// pass so a caller can show the complete list.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Report is the outcome of a validation pass. Errors preserves rule order.
type Report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate checks a serialized quiz document. Top-level shape errors
// short-circuit before per-question checks, since those assume both
// metadata and questions exist.
func Validate(data []byte) Report {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return Report{Errors: []string{"invalid data format"}}
	}

	var errs []string
	rawMeta, hasMeta := doc["metadata"]
	if !hasMeta || isNull(rawMeta) {
		errs = append(errs, `missing "metadata"`)
	}
	var questions []json.RawMessage
	if raw, ok := doc["questions"]; !ok || json.Unmarshal(raw, &questions) != nil {
		errs = append(errs, `"questions" must be an array`)
	}
	if len(errs) > 0 {
		return Report{Errors: errs}
	}

	var meta map[string]json.RawMessage
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		meta = nil
	}
	if s, ok := asString(meta["title"]); !ok || s == "" {
		errs = append(errs, "metadata.title required")
	}
	if s, ok := asString(meta["subject"]); !ok || s == "" {
		errs = append(errs, "metadata.subject required")
	}
	declaredCount, countOK := asNumber(meta["questionCount"])
	if !countOK {
		errs = append(errs, "metadata.questionCount must be number")
	}

	seen := make(map[string]bool)
	for i, rawQ := range questions {
		pre := fmt.Sprintf("Q%d", i+1)

		var q map[string]json.RawMessage
		if err := json.Unmarshal(rawQ, &q); err != nil || q == nil {
			errs = append(errs, pre+" must be an object")
			continue
		}

		if id, ok := asString(q["id"]); !ok || id == "" {
			errs = append(errs, pre+" missing id")
		} else if seen[id] {
			errs = append(errs, fmt.Sprintf("%s duplicate id %q", pre, id))
		} else {
			seen[id] = true
		}

		if text, ok := asString(q["question"]); !ok || strings.TrimSpace(text) == "" {
			errs = append(errs, pre+" empty question")
		}

		var options []json.RawMessage
		optionsOK := q["options"] != nil && json.Unmarshal(q["options"], &options) == nil
		if !optionsOK || len(options) < 2 || len(options) > 6 {
			errs = append(errs, pre+" must have 2-6 options")
		} else {
			for j, rawOpt := range options {
				if opt, ok := asString(rawOpt); !ok || strings.TrimSpace(opt) == "" {
					errs = append(errs, fmt.Sprintf("%s option %d empty", pre, j+1))
				}
			}
		}

		answer, answerOK := asNumber(q["answer"])
		if !answerOK || answer != float64(int(answer)) || int(answer) < 0 || (len(options) > 0 && int(answer) >= len(options)) {
			errs = append(errs, fmt.Sprintf("%s answer must be valid option index (0-%d)", pre, max(len(options)-1, 0)))
		}

		if expl, ok := asString(q["explanation"]); !ok || strings.TrimSpace(expl) == "" {
			errs = append(errs, pre+" missing explanation")
		}
	}

	if countOK && int(declaredCount) != len(questions) {
		errs = append(errs, fmt.Sprintf("questionCount (%d) != actual (%d)", int(declaredCount), len(questions)))
	}

	return Report{Valid: len(errs) == 0, Errors: errs}
}

// QuickValidate performs only the cheapest structural checks for pre-display
// gating. It is not a substitute for Validate.
func QuickValidate(data []byte) bool {
	var doc struct {
		Metadata *struct {
			Title string `json:"title"`
		} `json:"metadata"`
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Metadata != nil && doc.Metadata.Title != "" && len(doc.Questions) > 0
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func asString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func asNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}
