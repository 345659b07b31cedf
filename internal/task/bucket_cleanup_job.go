package task

import (
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/logger"
	"github.com/blues/pss/internal/model"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// BucketCleanupJob 限流桶清理任务
// 小时桶与日提现桶只在当前窗口内有意义，过期行定期清除
type BucketCleanupJob struct {
	db     *gorm.DB
	config *config.Config
}

// NewBucketCleanupJob 创建限流桶清理任务
func NewBucketCleanupJob(db *gorm.DB, cfg *config.Config) *BucketCleanupJob {
	return &BucketCleanupJob{
		db:     db,
		config: cfg,
	}
}

// GetName 获取任务名称
func (j *BucketCleanupJob) GetName() string {
	return "bucket_cleanup"
}

// GetSchedule 获取调度配置
func (j *BucketCleanupJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Hour)
}

// Execute 执行任务
func (j *BucketCleanupJob) Execute() {
	now := time.Now().Unix()

	// 保留48小时内的小时桶
	hourCutoff := now/3600 - 48
	res := j.db.Where("hour_bucket < ?", hourCutoff).Delete(&model.HourlyBucket{})
	if res.Error != nil {
		logger.Error("Failed to clean hourly buckets: %v", res.Error)
	} else if res.RowsAffected > 0 {
		logger.Info("Cleaned %d expired hourly buckets", res.RowsAffected)
	}

	// 保留30天内的日提现桶
	dayCutoff := now/86400 - 30
	res = j.db.Where("day_bucket < ?", dayCutoff).Delete(&model.WithdrawDayBucket{})
	if res.Error != nil {
		logger.Error("Failed to clean withdraw day buckets: %v", res.Error)
	} else if res.RowsAffected > 0 {
		logger.Info("Cleaned %d expired withdraw day buckets", res.RowsAffected)
	}
}
