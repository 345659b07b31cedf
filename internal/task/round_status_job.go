package task

import (
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/logger"
	"github.com/blues/pss/internal/presale"
	"github.com/go-co-op/gocron/v2"
)

// RoundStatusJob 轮次状态巡检任务
// 只观察告警：窗口已过未终结的轮次记录警告，终结与推进始终走特权入口
type RoundStatusJob struct {
	engine *presale.Engine
	config *config.Config
}

// NewRoundStatusJob 创建轮次状态任务
func NewRoundStatusJob(engine *presale.Engine, cfg *config.Config) *RoundStatusJob {
	return &RoundStatusJob{
		engine: engine,
		config: cfg,
	}
}

// GetName 获取任务名称
func (j *RoundStatusJob) GetName() string {
	return "round_status_monitor"
}

// GetSchedule 获取调度配置
func (j *RoundStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *RoundStatusJob) Execute() {
	index, stalled, err := j.engine.StalledRound()
	if err != nil {
		logger.Error("Round status job failed: %v", err)
		return
	}
	if stalled {
		logger.Warn("Round %d window ended without finalization, awaiting operator action", index)
	}
}
