package report

// ReportQuery: GET /reports/attendance(/export) のクエリ
type ReportQuery struct {
	Threshold *int   `form:"threshold" binding:"omitempty,min=0,max=100"`
	LowOnly   bool   `form:"low_only"`
	Format    string `form:"format" binding:"omitempty,oneof=csv xlsx"`
	Encoding  string `form:"encoding" binding:"omitempty,oneof=utf8 sjis"`
}

type ReportRow struct {
	SubjectID   int64  `json:"subject_id"`
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	Cell
}

type ReportResponse struct {
	Threshold int         `json:"threshold"`
	Rows      []ReportRow `json:"rows"`
}

type DashboardCard struct {
	SubjectID   int64  `json:"subject_id"`
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	Cell
}

type DashboardResponse struct {
	Threshold int             `json:"threshold"`
	Subjects  []DashboardCard `json:"subjects"`
}

// ExportFile: ダウンロード用に組み立て済みのファイル
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}
