package task

import (
	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/logger"
	"github.com/blues/pss/internal/presale"
	"github.com/blues/pss/internal/token"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// TaskManager 任务管理器
type TaskManager struct {
	scheduler  gocron.Scheduler
	db         *gorm.DB
	engine     *presale.Engine
	config     *config.Config
	payment    token.Ledger
	allocation token.Ledger
}

// NewTaskManager 创建新的任务管理器
func NewTaskManager(db *gorm.DB, engine *presale.Engine, payment, allocation token.Ledger, cfg *config.Config) *TaskManager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &TaskManager{
		scheduler:  s,
		db:         db,
		engine:     engine,
		config:     cfg,
		payment:    payment,
		allocation: allocation,
	}
}

// Start 启动任务管理器
func Start(db *gorm.DB, engine *presale.Engine, payment, allocation token.Ledger, cfg *config.Config) *TaskManager {
	manager := NewTaskManager(db, engine, payment, allocation, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *TaskManager) RegisterJobs() {
	m.register(NewRoundStatusJob(m.engine, m.config))
	m.register(NewBucketCleanupJob(m.db, m.config))
	m.register(NewReconcileJob(m.db, m.payment, m.allocation, m.config))
}

// Job 定时任务接口
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// register 注册单个任务
func (m *TaskManager) register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *TaskManager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
