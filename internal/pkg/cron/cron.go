package cron

import (
	"context"
	"log"
	"time"

	"github.com/codexalpha/blueprint_go_server/internal/service"
)

// Service 后台恢复扫描：周期性把卡住的章节重置回 pending
type Service struct {
	retryService  *service.RetryService
	stuckAfter    time.Duration
	sweepInterval time.Duration
	stopChan      chan struct{}
}

func NewService(retryService *service.RetryService, stuckAfterMinutes, sweepIntervalMinutes int) *Service {
	return &Service{
		retryService:  retryService,
		stuckAfter:    time.Duration(stuckAfterMinutes) * time.Minute,
		sweepInterval: time.Duration(sweepIntervalMinutes) * time.Minute,
		stopChan:      make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runSweep()
	log.Printf("Cron service started (stuck sweep every %s, threshold %s)", s.sweepInterval, s.stuckAfter)
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

func (s *Service) runSweep() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Service) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reset, err := s.retryService.SweepStuck(ctx, s.stuckAfter, 500)
	if err != nil {
		log.Printf("Stuck sweep failed: %v", err)
		return
	}
	if reset > 0 {
		log.Printf("Stuck sweep: reset %d sections", reset)
	}
}

// RunNow 立即执行一次扫描（手动触发或测试用）
func (s *Service) RunNow(ctx context.Context) (int, error) {
	return s.retryService.SweepStuck(ctx, s.stuckAfter, 500)
}
