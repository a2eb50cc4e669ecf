package task

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/odhis101/k3c-platform/internal/logic"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// VerifyPendingJob 挂起交易巡检任务
// 渠道回调可能丢失，超过阈值仍未终结的交易主动向渠道查询并对账
type VerifyPendingJob struct {
	db        *gorm.DB
	reconcile *logic.ReconcileLogic
	config    *config.Config
	pool      *ants.Pool // 协程池，限制并发查询数量
}

// NewVerifyPendingJob 创建巡检任务
func NewVerifyPendingJob(db *gorm.DB, reconcile *logic.ReconcileLogic, cfg *config.Config) *VerifyPendingJob {
	pool, err := ants.NewPool(8)
	if err != nil {
		logger.Fatal("Failed to create worker pool: %v", err)
	}

	return &VerifyPendingJob{
		db:        db,
		reconcile: reconcile,
		config:    cfg,
		pool:      pool,
	}
}

// GetName 获取任务名称
func (j *VerifyPendingJob) GetName() string {
	return "verify_pending_transactions"
}

// GetSchedule 获取调度配置
func (j *VerifyPendingJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *VerifyPendingJob) Execute() {
	cutoff := time.Now().Add(-time.Duration(j.config.Task.VerifyAfterSeconds) * time.Second)

	var checkoutIds []string
	err := j.db.Table("payment_transaction").
		Where("status IN ? AND updated_at < ?", []string{"initiated", "pending"}, cutoff).
		Limit(100).
		Pluck("checkout_id", &checkoutIds).Error
	if err != nil {
		logger.Error("Failed to fetch pending transactions: %v", err)
		return
	}

	if len(checkoutIds) == 0 {
		return
	}
	logger.Info("Verifying %d stale pending transactions", len(checkoutIds))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	for _, checkoutId := range checkoutIds {
		checkoutId := checkoutId
		wg.Add(1)
		err := j.pool.Submit(func() {
			defer wg.Done()
			if _, err := j.reconcile.VerifyAndReconcile(ctx, checkoutId); err != nil {
				logger.Warn("Failed to verify transaction %s: %v", checkoutId, err)
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit verify task: %v", err)
		}
	}
	wg.Wait()
}
