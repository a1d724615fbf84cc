package api

import (
	"sync"
	"time"

	"github.com/samcharles93/glbopt/internal/optimize"
)

const defaultMaxReports = 256

// ReportStore keeps the reports of recent optimize requests so clients can
// fetch per-image details after downloading the binary result. The oldest
// report is evicted once the store is full.
type ReportStore struct {
	mu      sync.Mutex
	limit   int
	order   []string
	reports map[string]ReportResponse
}

func NewReportStore(limit int) *ReportStore {
	if limit <= 0 {
		limit = defaultMaxReports
	}
	return &ReportStore{
		limit:   limit,
		reports: make(map[string]ReportResponse),
	}
}

func (s *ReportStore) Put(id string, rep *optimize.Report, now time.Time) ReportResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := ReportResponse{
		ID:        id,
		Object:    "optimize.report",
		CreatedAt: now.Unix(),
		Report:    rep,
	}
	if _, ok := s.reports[id]; !ok {
		s.order = append(s.order, id)
	}
	s.reports[id] = resp
	for len(s.order) > s.limit {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
	return resp
}

func (s *ReportStore) Get(id string) (ReportResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.reports[id]
	return resp, ok
}

func (s *ReportStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}
