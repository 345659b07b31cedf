package task

import (
	"context"
	"math/big"
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/logger"
	"github.com/blues/pss/internal/model"
	"github.com/blues/pss/internal/token"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReconcileJob 托管账户对账任务
// 周期性比对链上托管余额与内部账本，发现短缺立即告警：
//   - 支付资产余额应 >= 总募资 - 总提现
//   - 分配资产余额应 >= 总分配 - 总已领取
type ReconcileJob struct {
	db         *gorm.DB
	payment    token.Ledger
	allocation token.Ledger
	config     *config.Config
}

// NewReconcileJob 创建对账任务
func NewReconcileJob(db *gorm.DB, payment, allocation token.Ledger, cfg *config.Config) *ReconcileJob {
	return &ReconcileJob{
		db:         db,
		payment:    payment,
		allocation: allocation,
		config:     cfg,
	}
}

// GetName 获取任务名称
func (j *ReconcileJob) GetName() string {
	return "custody_reconciler"
}

// GetSchedule 获取调度配置
func (j *ReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(10 * time.Minute)
}

// Execute 执行任务
func (j *ReconcileJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var st model.PresaleState
	if err := j.db.First(&st, 1).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return
		}
		logger.Error("Reconcile job failed to load state: %v", err)
		return
	}

	custody := j.config.Chain.Custody

	// 支付资产
	raised, ok1 := new(big.Int).SetString(st.TotalRaised, 10)
	withdrawn, ok2 := new(big.Int).SetString(st.TotalWithdrawn, 10)
	if ok1 && ok2 {
		expected := new(big.Int).Sub(raised, withdrawn)
		balance, err := j.payment.BalanceOf(ctx, custody)
		if err != nil {
			logger.Error("Reconcile job failed to read payment balance: %v", err)
		} else if balance.Cmp(expected) < 0 {
			logger.Error("Custody payment shortfall: balance %s, expected >= %s", balance, expected)
		} else {
			logger.Debug("Payment custody reconciled: balance %s, expected %s", balance, expected)
		}
	}

	// 分配资产
	allocated, ok1 := new(big.Int).SetString(st.TotalAllocated, 10)
	claimed, ok2 := new(big.Int).SetString(st.TotalClaimed, 10)
	if ok1 && ok2 {
		outstanding := new(big.Int).Sub(allocated, claimed)
		balance, err := j.allocation.BalanceOf(ctx, custody)
		if err != nil {
			logger.Error("Reconcile job failed to read allocation balance: %v", err)
		} else if balance.Cmp(outstanding) < 0 {
			logger.Error("Custody allocation shortfall: balance %s, outstanding %s", balance, outstanding)
		} else {
			logger.Debug("Allocation custody reconciled: balance %s, outstanding %s", balance, outstanding)
		}
	}
}
