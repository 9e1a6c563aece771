package catalog

import (
	"context"
	"log"
	"strings"

	"ROLLCALL-backend/internal/platform/apierr"
)

type CatalogStore interface {
	InsertSubject(ctx context.Context, code, name string) (int64, error)
	ListSubjects(ctx context.Context, p Page) ([]SubjectResponse, int64, error)
	Enroll(ctx context.Context, studentID, subjectID int64) (bool, error)
	ListEnrollments(ctx context.Context, subjectID *int64, p Page) ([]EnrollmentResponse, int64, error)
}

type Service struct{ store CatalogStore }

func NewService(store CatalogStore) *Service { return &Service{store: store} }

func (s *Service) CreateSubject(ctx context.Context, in CreateSubjectRequest) (SubjectResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return SubjectResponse{}, apierr.Invalid("code and name are required")
	}
	id, err := s.store.InsertSubject(ctx, code, name)
	if err != nil {
		return SubjectResponse{}, apierr.Wrap(err)
	}
	log.Printf("[INFO] subject %s created (id=%d)", code, id)
	return SubjectResponse{SubjectID: id, Code: code, Name: name}, nil
}

func (s *Service) ListSubjects(ctx context.Context, p Page) ([]SubjectResponse, int64, error) {
	items, total, err := s.store.ListSubjects(ctx, p.normalize())
	if err != nil {
		return nil, 0, apierr.Wrap(err)
	}
	return items, total, nil
}

func (s *Service) Enroll(ctx context.Context, in EnrollRequest) (EnrollmentResponse, error) {
	if in.StudentID <= 0 || in.SubjectID <= 0 {
		return EnrollmentResponse{}, apierr.Invalid("student_id and subject_id are required")
	}
	created, err := s.store.Enroll(ctx, in.StudentID, in.SubjectID)
	if err != nil {
		return EnrollmentResponse{}, apierr.Wrap(err)
	}
	if created {
		log.Printf("[INFO] student %d enrolled in subject %d", in.StudentID, in.SubjectID)
	}
	return EnrollmentResponse{StudentID: in.StudentID, SubjectID: in.SubjectID, Created: created}, nil
}

func (s *Service) ListEnrollments(ctx context.Context, subjectID *int64, p Page) ([]EnrollmentResponse, int64, error) {
	items, total, err := s.store.ListEnrollments(ctx, subjectID, p.normalize())
	if err != nil {
		return nil, 0, apierr.Wrap(err)
	}
	return items, total, nil
}
