package report

import (
	"fmt"

	"ROLLCALL-backend/internal/attendance"
	"ROLLCALL-backend/internal/platform/apierr"
)

// Key: (科目, 学生) の組。文字列連結はしない。
type Key struct {
	SubjectID int64
	StudentID int64
}

// Mark: 集計の入力1件（台帳の1行を科目付きで見たもの）
type Mark struct {
	SubjectID int64
	StudentID int64
	Status    attendance.Status
}

// Cell は (科目, 学生) ごとの集計結果。保存はせず毎回計算する。
type Cell struct {
	P     int  `json:"p"`
	L     int  `json:"l"`
	A     int  `json:"a"`
	Total int  `json:"total"`
	Pct   int  `json:"pct"`
	Low   bool `json:"low"`
}

// Attended: 遅刻も出席扱い
func (c Cell) Attended() int { return c.P + c.L }

// Aggregate は marks を (科目, 学生) ごとに数え、出席率と low 判定を付ける。
// 教員レポート（全科目×全学生）も学生ダッシュボード（本人の科目のみ）も入力の絞り方が違うだけ。
func Aggregate(marks []Mark, threshold int) (map[Key]Cell, error) {
	out := make(map[Key]Cell)
	for _, m := range marks {
		k := Key{SubjectID: m.SubjectID, StudentID: m.StudentID}
		c := out[k]
		switch m.Status {
		case attendance.StatusPresent:
			c.P++
		case attendance.StatusLate:
			c.L++
		case attendance.StatusAbsent:
			c.A++
		default:
			return nil, apierr.Invalid(fmt.Sprintf("unknown attendance status %q for subject %d student %d", m.Status, m.SubjectID, m.StudentID))
		}
		out[k] = c
	}
	for k, c := range out {
		out[k] = c.finish(threshold)
	}
	return out, nil
}

// CellFor: 記録の無い組はゼロのセル（low にはならない）
func CellFor(cells map[Key]Cell, k Key, threshold int) Cell {
	if c, ok := cells[k]; ok {
		return c
	}
	return Cell{}.finish(threshold)
}

func (c Cell) finish(threshold int) Cell {
	c.Total = c.P + c.L + c.A
	c.Pct = Percent(c.Attended(), c.Total)
	// 記録ゼロ（pct=0）の学生は low にしない
	c.Low = c.Pct > 0 && c.Pct < threshold
	return c
}

// Percent: round(100*attended/total) の四捨五入（.5 は切り上げ）。total=0 なら 0。
func Percent(attended, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*attended + total) / (2 * total)
}
