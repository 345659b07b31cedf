package presale

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/model"
	"github.com/blues/pss/internal/token"
	"gorm.io/gorm"
)

// Notifier 事件通知接口，提交后异步分发
type Notifier interface {
	Publish(eventType string, payload map[string]interface{})
}

// Engine 预售核心引擎
// 所有变更入口串行执行：互斥锁覆盖整个操作（含外部转账），拒绝任何嵌套重入；
// 每个操作是一个数据库事务，守卫失败即整体回滚，不产生半程状态
type Engine struct {
	db         *gorm.DB
	cfg        *config.PresaleConfig
	auth       *AuthContext
	payment    token.Ledger
	allocation token.Ledger
	custody    string

	mu sync.Mutex

	now         func() time.Time
	blockNumber func(ctx context.Context) (uint64, error)
	notifier    Notifier
}

// Option 引擎可选配置
type Option func(*Engine)

// WithClock 注入时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBlockNumber 注入区块高度源（冷却守卫的距离度量）
func WithBlockNumber(fn func(ctx context.Context) (uint64, error)) Option {
	return func(e *Engine) { e.blockNumber = fn }
}

// WithNotifier 注入事件通知器
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New 创建预售引擎
func New(db *gorm.DB, cfg *config.PresaleConfig, auth *AuthContext, payment, allocation token.Ledger, custody string, opts ...Option) *Engine {
	e := &Engine{
		db:         db,
		cfg:        cfg,
		auth:       auth,
		payment:    payment,
		allocation: allocation,
		custody:    normalizeAddress(custody),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// loadState 读取全局状态单行，不存在时按配置默认值创建
func (e *Engine) loadState(tx *gorm.DB) (*model.PresaleState, error) {
	var st model.PresaleState
	err := tx.Where("id = ?", 1).First(&st).Error
	if err == nil {
		return &st, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	st = model.PresaleState{
		Id:             1,
		TotalRaised:    "0",
		TotalAllocated: "0",
		TotalClaimed:   "0",
		TotalWithdrawn: "0",
		HourlyLimit:    e.cfg.HourlyLimit,
	}
	if err := tx.Create(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// readState 只读路径的状态读取，不存在时返回默认值且不落库
func (e *Engine) readState(tx *gorm.DB) (*model.PresaleState, error) {
	var st model.PresaleState
	err := tx.Where("id = ?", 1).First(&st).Error
	if err == gorm.ErrRecordNotFound {
		return &model.PresaleState{
			Id:             1,
			TotalRaised:    "0",
			TotalAllocated: "0",
			TotalClaimed:   "0",
			TotalWithdrawn: "0",
			HourlyLimit:    e.cfg.HourlyLimit,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// emitEvent 在当前事务内落事件记录
func emitEvent(tx *gorm.DB, eventType, address string, roundIndex int, amount string, data map[string]interface{}) error {
	evt := model.PresaleEvent{
		Type:       eventType,
		Address:    normalizeAddress(address),
		RoundIndex: roundIndex,
		Amount:     amount,
	}
	if evt.Amount == "" {
		evt.Amount = "0"
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		evt.Data = string(raw)
	}
	return tx.Create(&evt).Error
}

// publish 事务提交后异步通知
func (e *Engine) publish(eventType string, payload map[string]interface{}) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(eventType, payload)
}

// currentBlock 获取当前区块高度；未注入区块源时冷却守卫退化为放行
func (e *Engine) currentBlock(ctx context.Context) (uint64, bool, error) {
	if e.blockNumber == nil {
		return 0, false, nil
	}
	n, err := e.blockNumber(ctx)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// roundCount 配置的轮次数量
func (e *Engine) roundCount() int {
	return len(e.cfg.Rounds)
}

// loadRound 按序号读取轮次
func loadRound(tx *gorm.DB, index int) (*model.Round, error) {
	var round model.Round
	if err := tx.Where("round_index = ?", index).First(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}
