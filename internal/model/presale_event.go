package model

import (
	"time"
)

// 事件类型
const (
	EventRoundsInitialized  = "rounds_initialized"
	EventContribution       = "contribution"
	EventRoundFinalized     = "round_finalized"
	EventRoundAdvanced      = "round_advanced"
	EventTGERequested       = "tge_requested"
	EventTGEEnabled         = "tge_enabled"
	EventTGECancelled       = "tge_cancelled"
	EventClaim              = "claim"
	EventRefundsEnabled     = "refunds_enabled"
	EventRefundClaimed      = "refund_claimed"
	EventRefundsRecovered   = "refunds_recovered"
	EventWithdrawRequested  = "withdraw_requested"
	EventWithdrawExecuted   = "withdraw_executed"
	EventWithdrawCancelled  = "withdraw_cancelled"
	EventEmergencyRequested = "emergency_requested"
	EventEmergencyExecuted  = "emergency_executed"
	EventEmergencyCancelled = "emergency_cancelled"
	EventExcessWithdrawn    = "excess_withdrawn"
	EventRateLimitUpdated   = "rate_limit_updated"
	EventPaused             = "paused"
	EventUnpaused           = "unpaused"
)

// PresaleEvent 事件记录：每个变更操作在同一事务内落一条事件
// 相当于合约事件的服务端形式，供前端与对账使用
type PresaleEvent struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Type       string `json:"type" gorm:"size:32;not null;index"`
	Address    string `json:"address" gorm:"size:42;index"`
	RoundIndex int    `json:"round_index" gorm:"default:-1"`
	Amount     string `json:"amount" gorm:"type:decimal(78,0);not null;default:0"`

	// 附加数据（JSON）
	Data string `json:"data" gorm:"type:text"`
}

// TableName 自定义表名
func (PresaleEvent) TableName() string {
	return "presale_event"
}
