package model

import (
	"time"
)

// PresaleState 全局状态单行表：轮次游标、事件/退款开关、全局计数器
// tge_enabled 与 refund_enabled 互斥，均为单向置 true
type PresaleState struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 轮次游标：当前接受贡献的轮次序号
	RoundsInitialized bool `json:"rounds_initialized" gorm:"default:false"`
	CurrentRound      int  `json:"current_round" gorm:"default:0"`

	// 暂停开关，仅作用于 contribute
	Paused bool `json:"paused" gorm:"default:false"`

	// 事件（TGE）状态
	TGEEnabled bool  `json:"tge_enabled" gorm:"default:false"`
	TGETime    int64 `json:"tge_time" gorm:"default:0"`

	// 退款状态
	RefundEnabled  bool  `json:"refund_enabled" gorm:"default:false"`
	RefundDeadline int64 `json:"refund_deadline" gorm:"default:0"`

	// 全局计数器（金额为 wei，decimal string 存储）
	TotalParticipants int64  `json:"total_participants" gorm:"default:0"`
	TotalRaised       string `json:"total_raised" gorm:"type:decimal(78,0);not null;default:0"`
	TotalAllocated    string `json:"total_allocated" gorm:"type:decimal(78,0);not null;default:0"`
	TotalClaimed      string `json:"total_claimed" gorm:"type:decimal(78,0);not null;default:0"`
	TotalWithdrawn    string `json:"total_withdrawn" gorm:"type:decimal(78,0);not null;default:0"`

	// 可调的小时限额（管理员可在配置的上下界内修改）
	HourlyLimit string `json:"hourly_limit" gorm:"type:decimal(78,0);not null;default:0"`
}

// TableName 自定义表名
func (PresaleState) TableName() string {
	return "presale_state"
}
