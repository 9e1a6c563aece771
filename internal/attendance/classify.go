package attendance

import (
	"fmt"

	"ROLLCALL-backend/internal/platform/apierr"
)

// Classify: 申告された状態 → 保存する状態。
// 窓の判定が先。閉じていれば申告に関係なく拒否し、Present→Late の変換は窓の中でだけ起きる。
func Classify(claimed Status, elapsedMins, lateAfterMins int, windowOpen bool) (Status, error) {
	if !claimed.Valid() {
		return "", apierr.Invalid(fmt.Sprintf("status must be one of P, L, A (got %q)", string(claimed)))
	}
	if !windowOpen {
		return "", apierr.WindowClosed("attendance window closed")
	}
	if claimed == StatusPresent && elapsedMins > lateAfterMins {
		return StatusLate, nil
	}
	return claimed, nil
}
