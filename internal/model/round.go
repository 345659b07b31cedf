package model

import (
	"time"
)

// Round 轮次模型：固定5个轮次，初始化后只有 raised/finalized 可变
type Round struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 轮次序号 0..4，初始化后不可变
	Index int `json:"index" gorm:"column:round_index;uniqueIndex;not null"`

	// 价格信息：price 为每个完整代币的支付资产数量（18位定点，wei，decimal string 存储）
	Price  string `json:"price" gorm:"type:decimal(78,0);not null"`
	Target string `json:"target" gorm:"type:decimal(78,0);not null"`
	Raised string `json:"raised" gorm:"type:decimal(78,0);not null;default:0"`

	// 时间窗口（unix 秒），各轮次严格递增且不重叠
	StartTime int64 `json:"start_time" gorm:"not null"`
	EndTime   int64 `json:"end_time" gorm:"not null"`

	// 解锁与奖励比例（0-100）
	TGEUnlockPercent int `json:"tge_unlock_percent" gorm:"not null"`
	BonusPercent     int `json:"bonus_percent" gorm:"not null"`

	// 终态标记，单向置 true
	Finalized bool `json:"finalized" gorm:"default:false"`
}

// TableName 自定义表名
func (Round) TableName() string {
	return "presale_round"
}
