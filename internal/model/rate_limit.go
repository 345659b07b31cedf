package model

import (
	"time"
)

// HourlyBucket 按地址+小时桶累计的贡献量（速率限制）
type HourlyBucket struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address    string `json:"address" gorm:"size:42;not null;uniqueIndex:idx_addr_hour"`
	HourBucket int64  `json:"hour_bucket" gorm:"not null;uniqueIndex:idx_addr_hour"`
	Volume     string `json:"volume" gorm:"type:decimal(78,0);not null;default:0"`
}

// TableName 自定义表名
func (HourlyBucket) TableName() string {
	return "presale_hourly_bucket"
}

// CooldownMarker 地址最近一次贡献所在区块（闪电贷防护）
type CooldownMarker struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address   string `json:"address" gorm:"size:42;uniqueIndex;not null"`
	LastBlock uint64 `json:"last_block" gorm:"not null"`
}

// TableName 自定义表名
func (CooldownMarker) TableName() string {
	return "presale_cooldown_marker"
}

// WithdrawDayBucket 提现日累计（熔断器），day_bucket 变化时重新累计
type WithdrawDayBucket struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DayBucket int64  `json:"day_bucket" gorm:"uniqueIndex;not null"`
	Withdrawn string `json:"withdrawn" gorm:"type:decimal(78,0);not null;default:0"`
}

// TableName 自定义表名
func (WithdrawDayBucket) TableName() string {
	return "presale_withdraw_day_bucket"
}
