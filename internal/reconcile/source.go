package reconcile

import (
	"context"
	"fmt"

	"gradebook/internal/store"
)

// StoreSource adapts *store.Store to the pipeline's Source interface.
type StoreSource struct {
	store *store.Store
}

// NewStoreSource wraps a store for use by the pipeline.
func NewStoreSource(s *store.Store) *StoreSource {
	return &StoreSource{store: s}
}

func (s *StoreSource) Exam(ctx context.Context, examID int64) (store.Exam, bool, error) {
	return s.store.Exams.FindByID(ctx, s.store.DB(), examID)
}

func (s *StoreSource) ClassSubjects(ctx context.Context, classID int64) ([]store.Subject, error) {
	return s.store.Subjects.FindAll(ctx, s.store.DB(), store.Criteria{"classroom_id": classID}, nil)
}

func (s *StoreSource) ClassStudents(ctx context.Context, classID int64) ([]store.User, error) {
	return s.store.ClassStudents(ctx, s.store.DB(), classID)
}

func (s *StoreSource) ExamResults(ctx context.Context, examID int64) ([]store.Result, error) {
	return s.store.Results.FindAll(ctx, s.store.DB(), store.Criteria{"exam_id": examID}, nil)
}

// ApplyResults writes the batch in one transaction. A unique violation here
// means a concurrent upload hit the same natural key first; it propagates as
// a storage error and the whole batch rolls back, leaving the caller free to
// retry against the then-current state.
func (s *StoreSource) ApplyResults(ctx context.Context, upserts []ResultUpsert) error {
	if len(upserts) == 0 {
		return nil
	}

	return s.store.WithTx(ctx, func(tx store.DBTX) error {
		for _, up := range upserts {
			if up.ResultID != 0 {
				matched, err := s.store.Results.Update(ctx, tx, up.ResultID, store.Fields{
					"marks":       up.Marks,
					"uploaded_by": up.UploadedBy,
				})
				if err != nil {
					return err
				}
				if !matched {
					return fmt.Errorf("result %d vanished mid-batch", up.ResultID)
				}
				continue
			}

			_, err := s.store.Results.Create(ctx, tx, store.Fields{
				"exam_id":     up.ExamID,
				"student_id":  up.StudentID,
				"subject_id":  up.SubjectID,
				"marks":       up.Marks,
				"uploaded_by": up.UploadedBy,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

var _ Source = (*StoreSource)(nil)
