package model

import (
	"time"
)

// Participant 参与者账本：按地址累计的贡献/分配/解锁/已领取状态
// 首次贡献时惰性创建，退款后字段清零（不删除记录）
type Participant struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address string `json:"address" gorm:"size:42;uniqueIndex;not null"`

	// 金额均为 18 位精度最小单位（wei，decimal string 存储）
	TotalPayment    string `json:"total_payment" gorm:"type:decimal(78,0);not null;default:0"`
	TotalAllocation string `json:"total_allocation" gorm:"type:decimal(78,0);not null;default:0"`
	TotalBonus      string `json:"total_bonus" gorm:"type:decimal(78,0);not null;default:0"`
	TGEUnlockAmount string `json:"tge_unlock_amount" gorm:"type:decimal(78,0);not null;default:0"`
	VestedAmount    string `json:"vested_amount" gorm:"type:decimal(78,0);not null;default:0"`
	ClaimedAmount   string `json:"claimed_amount" gorm:"type:decimal(78,0);not null;default:0"`

	// 是否已领取退款；退款后再次贡献会重置为 false 并重新计数
	RefundClaimed bool `json:"refund_claimed" gorm:"default:false"`
}

// TableName 自定义表名
func (Participant) TableName() string {
	return "presale_participant"
}
