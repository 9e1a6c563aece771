// Package metrics: 出席・申請まわりで共有する Prometheus のカウンタ
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MarksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "attendance_marks_total",
		Help:      "Attendance marks written to the ledger, by final status.",
	}, []string{"status"})

	LateDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "attendance_late_downgrades_total",
		Help:      "Present claims converted to Late after the late-after threshold.",
	})

	WindowRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "attendance_window_rejections_total",
		Help:      "Marks rejected because the marking window was closed.",
	})

	JustificationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "justifications_submitted_total",
		Help:      "Justifications created in Pending state.",
	})

	JustificationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "justification_decisions_total",
		Help:      "Terminal justification decisions, by outcome.",
	}, []string{"decision"})

	ConversionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "justification_conversion_failures_total",
		Help:      "Approved justifications whose ledger conversion failed.",
	})
)

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
