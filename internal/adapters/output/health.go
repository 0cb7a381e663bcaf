package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Pipeline is the view of a running follower that readiness checks need.
type Pipeline interface {
	IsRunning() bool
	QueueLength() int
	QueueCapacity() int
	LastActivity() time.Time
}

type HealthStatus struct {
	Healthy       bool    `json:"healthy"`
	Status        string  `json:"status"`
	QueueLength   int     `json:"queue_length"`
	QueueCapacity int     `json:"queue_capacity"`
	Utilization   float64 `json:"utilization_percent"`
	IdleSeconds   float64 `json:"idle_seconds"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Reason        string  `json:"reason,omitempty"`
}

type HealthChecker struct {
	pipeline  Pipeline
	startTime time.Time

	lastCheck     HealthStatus
	lastCheckTime time.Time
	lastCheckMu   sync.RWMutex
	checkInterval time.Duration
}

type HealthCheckerConfig struct {
	CheckInterval time.Duration
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		CheckInterval: 5 * time.Second,
	}
}

func NewHealthChecker(p Pipeline, config HealthCheckerConfig) *HealthChecker {
	return &HealthChecker{
		pipeline:      p,
		checkInterval: config.CheckInterval,
		startTime:     time.Now(),
	}
}

// Check returns the pipeline status, cached for CheckInterval.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.lastCheckMu.RLock()
	if !h.lastCheckTime.IsZero() && time.Since(h.lastCheckTime) < h.checkInterval {
		cached := h.lastCheck
		h.lastCheckMu.RUnlock()
		return cached
	}
	h.lastCheckMu.RUnlock()

	status := h.performCheck(ctx)

	h.lastCheckMu.Lock()
	h.lastCheck = status
	h.lastCheckTime = time.Now()
	h.lastCheckMu.Unlock()

	return status
}

func (h *HealthChecker) performCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.pipeline == nil || !h.pipeline.IsRunning() {
		status.Status = "OFFLINE"
		status.Reason = "follower not running"
		return status
	}

	status.QueueLength = h.pipeline.QueueLength()
	status.QueueCapacity = h.pipeline.QueueCapacity()
	if status.QueueCapacity > 0 {
		status.Utilization = float64(status.QueueLength) / float64(status.QueueCapacity) * 100
	}
	if last := h.pipeline.LastActivity(); !last.IsZero() {
		status.IdleSeconds = time.Since(last).Seconds()
	}

	if status.Utilization >= 95 {
		status.Status = "SATURATED"
		status.Reason = fmt.Sprintf("queue utilization at %.1f%%", status.Utilization)
		return status
	}

	status.Healthy = true
	if status.Utilization >= 80 {
		status.Status = "DEGRADED"
		status.Reason = fmt.Sprintf("queue utilization elevated at %.1f%%", status.Utilization)
	} else {
		status.Status = "HEALTHY"
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
