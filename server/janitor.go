package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-password-auth/auth"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const janitorRunTimeout = 30 * time.Second

// Janitor periodically removes expired refresh tokens and revocation entries.
type Janitor struct {
	cron     *cron.Cron
	auth     *auth.AuthorizationService
	metrics  *Metrics
	schedule string
}

// NewJanitor validates schedule (standard cron or "@every 1m" descriptors)
// and prepares the job. Nothing runs until Start.
func NewJanitor(authService *auth.AuthorizationService, schedule string, metrics *Metrics) (*Janitor, error) {
	if authService == nil {
		return nil, fmt.Errorf("[NewJanitor] authorization service is required")
	}

	j := &Janitor{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		auth:     authService,
		metrics:  metrics,
		schedule: schedule,
	}

	if _, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), janitorRunTimeout)
		defer cancel()
		_ = j.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("[NewJanitor] invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce performs a single cleanup pass.
func (j *Janitor) RunOnce(ctx context.Context) error {
	err := j.auth.CleanupExpired(ctx)
	if j.metrics != nil {
		j.metrics.CleanupRun(err)
	}
	if err != nil {
		log.Err(err).Msg("[Janitor] cleanup failed")
	}
	return err
}

func (j *Janitor) Start() {
	log.Info().Str("schedule", j.schedule).Msg("token janitor started")
	j.cron.Start()
}

// Stop stops scheduling and waits for a running cleanup to finish or ctx to expire.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
