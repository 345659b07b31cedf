package model

import (
	"time"
)

// TimelockStatus 时间锁请求状态
type TimelockStatus string

const (
	TimelockStatusPending   TimelockStatus = "pending"   // 等待执行
	TimelockStatusExecuted  TimelockStatus = "executed"  // 已执行
	TimelockStatusCancelled TimelockStatus = "cancelled" // 已取消
)

// 时间锁动作标识
const (
	TimelockActionEnableTGE         = "enable_tge"
	TimelockActionWithdraw          = "withdraw"
	TimelockActionEmergencyWithdraw = "emergency_withdraw"
)

// TimelockRequest 时间锁请求：request -> 等待 -> execute / cancel
// 同类动作允许多个并发请求时以 nonce 区分（如提现）
type TimelockRequest struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Action string `json:"action" gorm:"size:32;not null;index:idx_action_status"`
	Nonce  int64  `json:"nonce" gorm:"not null;default:0"`

	RequestedAt int64          `json:"requested_at" gorm:"not null"`
	RequestedBy string         `json:"requested_by" gorm:"size:42;not null"`
	Status      TimelockStatus `json:"status" gorm:"size:16;not null;default:'pending';index:idx_action_status"`

	// 动作参数（按动作类型选用）
	Destination string `json:"destination" gorm:"size:42"`
	Amount      string `json:"amount" gorm:"type:decimal(78,0);not null;default:0"`
	EventTime   int64  `json:"event_time" gorm:"default:0"`
}

// TableName 自定义表名
func (TimelockRequest) TableName() string {
	return "presale_timelock_request"
}
