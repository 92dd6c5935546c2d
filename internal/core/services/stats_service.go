package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

// StatsService agrega métricas do host e contadores globais.
type StatsService struct {
	metrics ports.SystemMetrics
	keys    ports.KeyStore
	images  ports.ImageRepository
	stats   ports.StatsRepository
	now     func() time.Time
}

func NewStatsService(metrics ports.SystemMetrics, keys ports.KeyStore, images ports.ImageRepository, stats ports.StatsRepository, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{metrics: metrics, keys: keys, images: images, stats: stats, now: now}
}

func (s *StatsService) Report(ctx context.Context) (domain.StatsReport, error) {
	var (
		report   domain.StatsReport
		counters domain.GlobalCounters
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snapshot, err := s.metrics.Snapshot(gctx)
		if err != nil {
			return err
		}
		report.SystemMetrics = snapshot
		return nil
	})
	g.Go(func() error {
		total, err := s.keys.Count(gctx)
		report.GlobalStats.TotalUsers = total
		return err
	})
	g.Go(func() error {
		total, err := s.images.CountAll(gctx)
		report.GlobalStats.TotalImages = total
		return err
	})
	g.Go(func() error {
		c, err := s.stats.Global(gctx)
		counters = c
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.StatsReport{}, fmt.Errorf("error retrieving system metrics: %w", err)
	}

	report.GlobalStats.TotalRequests = counters.TotalRequests
	now := s.now()
	report.Timestamp = float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)
	return report, nil
}

// RecordRequest bumps the global request counter.
func (s *StatsService) RecordRequest(ctx context.Context) error {
	return s.stats.IncrementRequests(ctx)
}
