package metrics

import "time"

// ModelAttempt records one candidate model call.
func ModelAttempt(model, status string, duration time.Duration) {
	ModelAttemptsTotal.WithLabelValues(model, status).Inc()
	InferenceDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// InspectionCompleted records a successful inspection
func InspectionCompleted(mode string) {
	InspectionsTotal.WithLabelValues(mode, "completed").Inc()
}

// InspectionFailed records a failed inspection
func InspectionFailed(mode string) {
	InspectionsTotal.WithLabelValues(mode, "failed").Inc()
}

// TokensUsed records token consumption reported by the provider
func TokensUsed(input, output int) {
	if input > 0 {
		AITokensTotal.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		AITokensTotal.WithLabelValues("output").Add(float64(output))
	}
}

// ReportDownloaded records a report export
func ReportDownloaded(format string) {
	ReportDownloadsTotal.WithLabelValues(format).Inc()
}
