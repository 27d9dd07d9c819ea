package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const sweepInterval = 15 * time.Minute

// Janitor sweeps expired idempotency keys out of postgres. The redis store
// expires keys by itself, but the postgres store would grow forever without
// this.
type Janitor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	ttl    time.Duration
	count  int
	wg     sync.WaitGroup
	stop   chan struct{}
}

func NewJanitor(pool *pgxpool.Pool, logger *zap.Logger, ttl time.Duration, count int) *Janitor {
	if count < 1 {
		count = 1
	}
	return &Janitor{
		pool:   pool,
		logger: logger,
		ttl:    ttl,
		count:  count,
		stop:   make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting idempotency janitor",
		zap.Duration("ttl", j.ttl),
		zap.Int("workers", j.count),
	)

	for i := 0; i < j.count; i++ {
		j.wg.Add(1)
		go j.worker(ctx, i)
	}
}

func (j *Janitor) Stop() {
	j.logger.Info("Stopping idempotency janitor...")
	close(j.stop)
	j.wg.Wait()
	j.logger.Info("Idempotency janitor stopped")
}

func (j *Janitor) worker(ctx context.Context, id int) {
	defer j.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				j.logger.Error("janitor sweep failed", zap.Int("worker", id), zap.Error(err))
			}
		}
	}
}

// Sweep deletes every idempotency key older than the TTL.
func (j *Janitor) Sweep(ctx context.Context) error {
	cmd, err := j.pool.Exec(ctx, `
		DELETE FROM idempotency_keys WHERE created_at < now() - make_interval(secs => $1)
	`, j.ttl.Seconds())
	if err != nil {
		return err
	}

	if n := cmd.RowsAffected(); n > 0 {
		j.logger.Info("Purged expired idempotency keys", zap.Int64("count", n))
	}
	return nil
}
