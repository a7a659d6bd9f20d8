package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "QuizRestored")
	if got != "Quiz restored" {
		t.Errorf("T(QuizRestored) = %q, want 'Quiz restored'", got)
	}

	got = T(ctx, "UndoExpired")
	if got != "Nothing to undo" {
		t.Errorf("T(UndoExpired) = %q, want 'Nothing to undo'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "QuizRestored")
	if got != "Тест восстановлен" {
		t.Errorf("T(QuizRestored) = %q, want 'Тест восстановлен'", got)
	}

	got = T(ctx, "QuizNotFound")
	if got != "Тест не найден" {
		t.Errorf("T(QuizNotFound) = %q, want 'Тест не найден'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuizzesDeleted", 1)
	if got1 != "Deleted 1 quiz" {
		t.Errorf("Tp(QuizzesDeleted, 1) = %q, want 'Deleted 1 quiz'", got1)
	}

	got5 := Tp(ctx, "QuizzesDeleted", 5)
	if got5 != "Deleted 5 quizzes" {
		t.Errorf("Tp(QuizzesDeleted, 5) = %q, want 'Deleted 5 quizzes'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ImportSuccess", map[string]any{"Title": "Go Basics"})
	if got != `Imported "Go Basics"` {
		t.Errorf("Td(ImportSuccess) = %q, want 'Imported \"Go Basics\"'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
