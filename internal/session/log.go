package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/DukeRupert/sitecheck/internal/domain"
)

// Log is an append-only, in-memory sequence of inspection reports.
// It is safe for concurrent use. Reads return copies so callers can never
// mutate stored entries.
type Log struct {
	mu      sync.RWMutex
	reports []domain.InspectionReport
}

// NewLog creates an empty report log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a report to the end of the log.
func (l *Log) Append(report domain.InspectionReport) {
	report = cloneReport(report)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, report)
}

// Len returns the number of reports.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.reports)
}

// All returns the reports in submission order.
func (l *Log) All() []domain.InspectionReport {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.InspectionReport, len(l.reports))
	for i, r := range l.reports {
		out[i] = cloneReport(r)
	}
	return out
}

// Newest returns the reports newest first.
func (l *Log) Newest() []domain.InspectionReport {
	out := l.All()
	slices.Reverse(out)
	return out
}

// Get returns the report with the given ID.
func (l *Log) Get(id uuid.UUID) (domain.InspectionReport, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, r := range l.reports {
		if r.ID == id {
			return cloneReport(r), true
		}
	}
	return domain.InspectionReport{}, false
}

func cloneReport(r domain.InspectionReport) domain.InspectionReport {
	r.SourceImage.Data = slices.Clone(r.SourceImage.Data)
	r.Thumbnail = slices.Clone(r.Thumbnail)
	return r
}
