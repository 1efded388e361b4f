package tracking

import (
	"testing"
	"time"

	"delivery-marketplace/internal/logger"
)

func TestHeartbeatThresholdFollowsInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"configured interval", 60 * time.Second, 120 * time.Second},
		{"short interval", 5 * time.Second, 10 * time.Second},
		{"zero falls back to default", 0, 60 * time.Second},
		{"negative falls back to default", -time.Second, 60 * time.Second},
	}

	log := logger.New("tracking-service-test")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, log, tt.interval)
			if svc.heartbeatThreshold != tt.want {
				t.Errorf("threshold = %v, want %v", svc.heartbeatThreshold, tt.want)
			}
		})
	}
}
