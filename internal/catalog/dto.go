package catalog

type CreateSubjectRequest struct {
	Code string `json:"code" binding:"required,max=32"`
	Name string `json:"name" binding:"required,max=255"`
}

type SubjectResponse struct {
	SubjectID int64  `json:"subject_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

type EnrollRequest struct {
	StudentID int64 `json:"student_id" binding:"required,gt=0"`
	SubjectID int64 `json:"subject_id" binding:"required,gt=0"`
}

type EnrollmentResponse struct {
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	SubjectID   int64  `json:"subject_id"`
	SubjectCode string `json:"subject_code"`
	Created     bool   `json:"created"`
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

func (p Page) normalize() Page {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	return p
}
