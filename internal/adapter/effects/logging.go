// Package effects records the robot side effects operators can trigger. The
// camera and audio stacks run out of process; this build logs the request
// and keeps the last value for the ops endpoints.
package effects

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Snapshot struct {
	LastPatientID  string    `json:"last_patient_id,omitempty"`
	DetectionCount uint64    `json:"detection_count"`
	Volume         string    `json:"volume,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

type Logging struct {
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger, now: time.Now}
}

func (l *Logging) StartCameraDetection(ctx context.Context, patientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.snap.LastPatientID = patientID
	l.snap.DetectionCount++
	l.snap.UpdatedAt = l.now()
	l.mu.Unlock()
	l.logger.Info("camera detection requested", "patient_id", patientID)
	return nil
}

func (l *Logging) SetVolume(ctx context.Context, volume string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.snap.Volume = volume
	l.snap.UpdatedAt = l.now()
	l.mu.Unlock()
	l.logger.Info("volume change requested", "volume", volume)
	return nil
}

func (l *Logging) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}
