package app

import (
	"context"
	"devcrawl/internal/core/ports"
	"devcrawl/internal/shared/util"
	"fmt"
	"sync"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// HealthService remembers the outcome of the latest batch so a long-running
// watch can report its health.
type HealthService struct {
	mu      sync.Mutex
	last    *ports.BatchReport
	lastErr error
	lastRun time.Time
	batches int
}

func NewHealthService() *HealthService {
	return &HealthService{}
}

// Record stores a batch outcome. Its signature matches WatchRequest.OnBatch.
func (s *HealthService) Record(report *ports.BatchReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = report
	s.lastErr = err
	s.lastRun = time.Now().UTC()
	s.batches++
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	switch {
	case s.batches == 0:
		status.Status = "starting"
		status.Components["batch"] = "pending"
	case s.lastErr != nil:
		status.Status = "degraded"
		status.Components["batch"] = "failed: " + s.lastErr.Error()
	case !s.last.OK():
		status.Status = "degraded"
		status.Components["batch"] = fmt.Sprintf("%d scripts failed", len(s.last.Failed))
	default:
		status.Components["batch"] = fmt.Sprintf("ok (%d instrumented)", len(s.last.Instrumented))
	}
	if s.batches > 0 {
		status.Components["last_run"] = s.lastRun.Format(time.RFC3339)
		status.Components["runs"] = fmt.Sprint(s.batches)
	}
	status.Components["heap"] = fmt.Sprintf("%d MB", util.GetHeapAllocMB())
	return status
}
