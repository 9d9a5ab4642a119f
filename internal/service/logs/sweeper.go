package logs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs scheduled retention cleanup for a fixed set of tenants.
type Sweeper struct {
	svc           *Service
	tenants       []string
	retentionDays int
	cron          *cron.Cron
	logger        *zap.Logger
}

func NewSweeper(svc *Service, tenants []string, retentionDays int, spec string, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		svc:           svc,
		tenants:       tenants,
		retentionDays: retentionDays,
		cron:          cron.New(),
		logger:        logger,
	}

	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule retention sweep: %w", err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("retention sweeper started",
		zap.Int("tenants", len(s.tenants)),
		zap.Int("retention_days", s.retentionDays))
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx := context.Background()
	for _, tenant := range s.tenants {
		if _, err := s.svc.Cleanup(ctx, tenant, s.retentionDays); err != nil {
			s.logger.Error("retention sweep failed",
				zap.String("tenant_id", tenant), zap.Error(err))
		}
	}
}
