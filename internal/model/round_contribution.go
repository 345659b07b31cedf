package model

import (
	"time"
)

// RoundContribution 参与者在单个轮次内的贡献明细
// 退款时用于按轮次回退 raised（次级索引，与 Participant 同步变更）
type RoundContribution struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address    string `json:"address" gorm:"size:42;not null;uniqueIndex:idx_addr_round"`
	RoundIndex int    `json:"round_index" gorm:"not null;uniqueIndex:idx_addr_round"`

	// 金额（wei，decimal string 存储）
	Payment    string `json:"payment" gorm:"type:decimal(78,0);not null;default:0"`
	Allocation string `json:"allocation" gorm:"type:decimal(78,0);not null;default:0"`
}

// TableName 自定义表名
func (RoundContribution) TableName() string {
	return "presale_round_contribution"
}
