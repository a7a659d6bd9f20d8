package validate

import (
	"fmt"
	"strings"
	"testing"
)

func validDoc() string {
	return `{
		"metadata": {"title": "Go Basics", "subject": "Go", "questionCount": 2},
		"questions": [
			{"id": "q1", "question": "What is a goroutine?", "options": ["A thread", "A lightweight thread"], "answer": 1, "explanation": "Goroutines are lightweight."},
			{"id": "q2", "question": "Who compiles Go?", "options": ["gc", "javac", "rustc"], "answer": 0, "explanation": "The gc toolchain."}
		]
	}`
}

func TestValidateAccepts(t *testing.T) {
	report := Validate([]byte(validDoc()))
	if !report.Valid {
		t.Fatalf("expected valid report, got errors: %v", report.Errors)
	}
	if len(report.Errors) != 0 {
		t.Errorf("valid report should carry no errors, got %v", report.Errors)
	}
}

func TestValidateTopLevelShape(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"not json", "{nope", []string{"invalid data format"}},
		{"array root", `[1,2,3]`, []string{"invalid data format"}},
		{"null root", `null`, []string{"invalid data format"}},
		{"string root", `"quiz"`, []string{"invalid data format"}},
		{"missing metadata", `{"questions": []}`, []string{`missing "metadata"`}},
		{"null metadata", `{"metadata": null, "questions": []}`, []string{`missing "metadata"`}},
		{"questions not array", `{"metadata": {}, "questions": {}}`, []string{`"questions" must be an array`}},
		{"missing questions", `{"metadata": {}}`, []string{`"questions" must be an array`}},
		{
			"both missing",
			`{}`,
			[]string{`missing "metadata"`, `"questions" must be an array`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate([]byte(tt.data))
			if report.Valid {
				t.Fatal("expected invalid report")
			}
			if len(report.Errors) != len(tt.want) {
				t.Fatalf("got errors %v, want %v", report.Errors, tt.want)
			}
			for i, want := range tt.want {
				if report.Errors[i] != want {
					t.Errorf("error[%d] = %q, want %q", i, report.Errors[i], want)
				}
			}
		})
	}
}

func TestValidateShortCircuitsBeforeQuestionChecks(t *testing.T) {
	// A broken top level must not produce per-question errors.
	report := Validate([]byte(`{"metadata": {}, "questions": "nope"}`))
	for _, e := range report.Errors {
		if strings.HasPrefix(e, "Q") {
			t.Errorf("unexpected per-question error %q after top-level failure", e)
		}
	}
}

func TestValidateMetadataFields(t *testing.T) {
	report := Validate([]byte(`{"metadata": {"title": "", "questionCount": "two"}, "questions": []}`))
	wantAll := []string{
		"metadata.title required",
		"metadata.subject required",
		"metadata.questionCount must be number",
	}
	for _, want := range wantAll {
		if !containsError(report.Errors, want) {
			t.Errorf("missing error %q in %v", want, report.Errors)
		}
	}
}

func TestValidateQuestionErrors(t *testing.T) {
	data := `{
		"metadata": {"title": "T", "subject": "S", "questionCount": 3},
		"questions": [
			{"id": "q1", "question": "  ", "options": ["a"], "answer": 0, "explanation": "e"},
			{"id": "q1", "question": "ok?", "options": ["a", "", "c"], "answer": 3, "explanation": ""},
			{"question": "also ok?", "options": ["a", "b"], "answer": 0.5, "explanation": "e"}
		]
	}`
	report := Validate([]byte(data))
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	wantAll := []string{
		"Q1 empty question",
		"Q1 must have 2-6 options",
		`Q2 duplicate id "q1"`,
		"Q2 option 2 empty",
		"Q2 answer must be valid option index (0-2)",
		"Q2 missing explanation",
		"Q3 missing id",
		"Q3 answer must be valid option index (0-1)",
	}
	for _, want := range wantAll {
		if !containsError(report.Errors, want) {
			t.Errorf("missing error %q in %v", want, report.Errors)
		}
	}
}

func TestValidateOptionBounds(t *testing.T) {
	for _, n := range []int{1, 7} {
		opts := make([]string, n)
		for i := range opts {
			opts[i] = fmt.Sprintf("%q", fmt.Sprintf("opt %d", i))
		}
		data := fmt.Sprintf(`{
			"metadata": {"title": "T", "subject": "S", "questionCount": 1},
			"questions": [{"id": "q1", "question": "x?", "options": [%s], "answer": 0, "explanation": "e"}]
		}`, strings.Join(opts, ","))
		report := Validate([]byte(data))
		if !containsError(report.Errors, "Q1 must have 2-6 options") {
			t.Errorf("%d options: missing range error, got %v", n, report.Errors)
		}
	}
}

func TestValidateQuestionCountMismatch(t *testing.T) {
	data := `{
		"metadata": {"title": "T", "subject": "S", "questionCount": 5},
		"questions": [
			{"id": "q1", "question": "x?", "options": ["a", "b"], "answer": 0, "explanation": "e"}
		]
	}`
	report := Validate([]byte(data))
	if !containsError(report.Errors, "questionCount (5) != actual (1)") {
		t.Errorf("missing count mismatch error, got %v", report.Errors)
	}
}

func TestValidateNonObjectQuestion(t *testing.T) {
	data := `{
		"metadata": {"title": "T", "subject": "S", "questionCount": 1},
		"questions": ["not an object"]
	}`
	report := Validate([]byte(data))
	if !containsError(report.Errors, "Q1 must be an object") {
		t.Errorf("missing object error, got %v", report.Errors)
	}
	// Malformed questions must not cascade into field errors.
	if containsError(report.Errors, "Q1 missing id") {
		t.Errorf("unexpected field error after object error: %v", report.Errors)
	}
}

func TestQuickValidate(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"valid", validDoc(), true},
		{"garbage", "nope", false},
		{"no metadata", `{"questions": [{}]}`, false},
		{"empty title", `{"metadata": {"title": ""}, "questions": [{}]}`, false},
		{"no questions", `{"metadata": {"title": "T"}, "questions": []}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuickValidate([]byte(tt.data)); got != tt.want {
				t.Errorf("QuickValidate = %v, want %v", got, tt.want)
			}
		})
	}
}

func containsError(errs []string, want string) bool {
	for _, e := range errs {
		if e == want {
			return true
		}
	}
	return false
}
