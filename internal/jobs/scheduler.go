package jobs

import (
	"fmt"
	"log"

	"CostwiseERP/internal/logger"
	"CostwiseERP/internal/serviceiface"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CronService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
}

func NewCronService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &CronService{
		config: cfg,
		db:     db,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	lockCfg := NewDefaultLockSyncConfig()
	if s.config != nil {
		if schedule, ok := s.config["lock_sync_schedule"].(string); ok && schedule != "" {
			lockCfg.Schedule = schedule
		}
	}

	if err := RunLockSyncScheduler(lockCfg, s.db); err != nil {
		return fmt.Errorf("failed to start lock sync scheduler: %v", err)
	}

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("Lock sync scheduler started")
	}
	log.Println("Cron service started — Lock Sync scheduled")
	return nil
}

func (s *CronService) Stop() error {
	stopLockSync()
	log.Println("Cron service stopped.")
	return nil
}
