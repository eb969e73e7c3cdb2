package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker logs the advance of a multi-step operation such as a waterfall run.
type ProgressTracker struct {
	logger    Logger
	operation string
	total     int64
	current   int64
	startTime time.Time
	mutex     sync.RWMutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation string `json:"operation"`
	Total     int64  `json:"total"`
	Logger    Logger `json:"-"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	tracker := &ProgressTracker{
		logger:    OrGlobal(config.Logger).WithComponent("progress"),
		operation: config.Operation,
		total:     config.Total,
		startTime: time.Now(),
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Debug("Starting operation")

	return tracker
}

// Step advances the tracker by one and logs the step label.
func (p *ProgressTracker) Step(label string, fields Fields) {
	p.mutex.Lock()
	p.current++
	stats := p.statsLocked()
	p.mutex.Unlock()

	entry := Fields{
		"operation": p.operation,
		"step":      label,
		"progress":  fmt.Sprintf("%d/%d", stats.Current, stats.Total),
	}
	for k, v := range fields {
		entry[k] = v
	}
	p.logger.WithFields(entry).Info("Progress update")
}

// Complete logs final statistics
func (p *ProgressTracker) Complete() {
	stats := p.GetStats()
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": stats.Current,
		"duration":  stats.Duration.String(),
	}).Info("Operation completed")
}

// CompleteWithError logs final statistics along with the failure
func (p *ProgressTracker) CompleteWithError(err error) {
	stats := p.GetStats()
	p.logger.WithError(err).WithFields(Fields{
		"operation": p.operation,
		"processed": stats.Current,
		"duration":  stats.Duration.String(),
	}).Error("Operation completed with error")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.statsLocked()
}

func (p *ProgressTracker) statsLocked() ProgressStats {
	var percentage float64
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}
	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Current:    p.current,
		Percentage: percentage,
		Duration:   time.Since(p.startTime),
	}
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%), elapsed: %v",
			ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Duration)
	}
	return fmt.Sprintf("%s: %d processed, elapsed: %v", ps.Operation, ps.Current, ps.Duration)
}

// TimedOperation executes fn and logs its duration and outcome
func TimedOperation(operation string, logger Logger, fn func() error) error {
	log := OrGlobal(logger).WithField("operation", operation)
	start := time.Now()

	err := fn()

	fields := Fields{"duration": time.Since(start).String()}
	if err != nil {
		log.WithError(err).WithFields(fields).Error("Operation failed")
	} else {
		log.WithFields(fields).Debug("Operation completed")
	}
	return err
}
