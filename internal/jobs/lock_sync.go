package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"CostwiseERP/internal/config"
	"CostwiseERP/internal/logger"
)

// LockSyncConfig drives the locked-product refresh job. Products that
// sit in an active costing run are excluded from rate mutation; the
// runs are owned by the costing engine, so this side only mirrors them
// into lockedproducts on a schedule.
type LockSyncConfig struct {
	Schedule        string
	DefaultTimeZone string
}

func NewDefaultLockSyncConfig() *LockSyncConfig {
	return &LockSyncConfig{
		Schedule:        config.DefaultLockSyncSchedule,
		DefaultTimeZone: config.DefaultTimeZone,
	}
}

var lockSyncCron *cron.Cron

// RunLockSyncScheduler refreshes lockedproducts once at startup and
// then on the configured cron schedule.
func RunLockSyncScheduler(cfg *LockSyncConfig, db *pgxpool.Pool) error {
	loc, err := time.LoadLocation(cfg.DefaultTimeZone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", cfg.DefaultTimeZone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		if err := SyncLockedProducts(context.Background(), db); err != nil {
			log.Printf("[ERROR] lock sync run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule lock sync job: %v", err)
	}
	c.Start()
	lockSyncCron = c

	go func() {
		if err := SyncLockedProducts(context.Background(), db); err != nil {
			log.Printf("[ERROR] initial lock sync failed: %v", err)
		}
	}()
	return nil
}

func stopLockSync() {
	if lockSyncCron != nil {
		lockSyncCron.Stop()
	}
}

// SyncLockedProducts rebuilds lockedproducts from the costing runs that
// are currently in progress or completed but not yet closed. The
// rebuild runs in one transaction so readers never see a half-empty
// lock set.
func SyncLockedProducts(ctx context.Context, db *pgxpool.Pool) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM lockedproducts`); err != nil {
		return fmt.Errorf("failed to clear lock set: %v", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO lockedproducts (product_id, locked_by_run, locked_at)
		SELECT DISTINCT ON (i.product_id) i.product_id, r.run_id, now()
		FROM costingrunitems i
		JOIN costingruns r ON r.run_id = i.run_id
		WHERE r.status IN ('in_progress', 'completed')
		ORDER BY i.product_id, r.started_at DESC`)
	if err != nil {
		return fmt.Errorf("failed to rebuild lock set: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit lock sync: %v", err)
	}

	log.Printf("[INFO] lock sync completed: %d products locked", tag.RowsAffected())
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(fmt.Sprintf("Lock sync refreshed %d locked products", tag.RowsAffected()))
	}
	return nil
}
