package costing

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"CostwiseERP/internal/notification"
	"CostwiseERP/internal/serviceiface"
)

type CostingService struct {
	config   map[string]interface{}
	pool     *pgxpool.Pool
	notifier *notification.Service
}

func NewCostingService(cfg map[string]interface{}, pool *pgxpool.Pool) serviceiface.Service {
	return &CostingService{
		config:   cfg,
		pool:     pool,
		notifier: notification.NewService(),
	}
}

func (s *CostingService) Name() string {
	return "costing"
}

func (s *CostingService) Start() error {
	go StartCostingService(portFromConfig(s.config), s.pool, s.notifier)
	return nil
}

func (s *CostingService) Stop() error {
	return nil
}
