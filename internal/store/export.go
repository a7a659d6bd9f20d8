package store

import (
	"quizdeck/internal/model"
)

// ExportAll builds a full-library backup: every record, every non-empty
// result history, and the export instant.
func (s *Store) ExportAll() model.LibraryExport {
	quizzes := s.loadQuizzes()
	results := make(map[string][]model.Result)
	for id := range quizzes {
		if history := s.ListResults(id); len(history) > 0 {
			results[id] = history
		}
	}
	return model.LibraryExport{
		Quizzes:    quizzes,
		Results:    results,
		ExportedAt: s.now(),
	}
}

// ExportSubset bags the selected quizzes with repository-internal fields
// stripped, so round-tripping the file through Save is a fresh import.
// Absent ids are skipped; Count reflects the request, as in a bulk export
// where some selections may have been deleted meanwhile.
func (s *Store) ExportSubset(ids []string) model.SubsetExport {
	quizzes := s.loadQuizzes()
	out := model.SubsetExport{
		Metadata: model.ExportMetadata{
			ExportDate: s.now(),
			Count:      len(ids),
			Version:    model.SchemaVersion,
		},
		Quizzes: make(map[string]model.Quiz),
	}
	for _, id := range ids {
		if rec, ok := quizzes[id]; ok {
			out.Quizzes[id] = rec.Quiz.Clone()
		}
	}
	return out
}
