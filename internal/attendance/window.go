package attendance

import (
	"math"
	"time"
)

// Window: ある時点での講義の入力窓の状態
type Window struct {
	ElapsedMins int  `json:"elapsed_mins"`
	Open        bool `json:"window_open"`
	// PastLateAfter: 今 Present を付けると Late として保存される
	PastLateAfter bool `json:"past_late_after"`
}

// Evaluate: 開始からの経過分（切り捨て、開始前は負）と窓が開いているかを返す。
// now は必ず引数で受け取り、内部で時計を読まない。
func Evaluate(lectureStart, now time.Time, windowMins, lateAfterMins int) Window {
	elapsed := int(math.Floor(now.Sub(lectureStart).Minutes()))
	return Window{
		ElapsedMins:   elapsed,
		Open:          elapsed >= 0 && elapsed <= windowMins,
		PastLateAfter: elapsed > lateAfterMins,
	}
}
