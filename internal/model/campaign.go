package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CampaignModel 募捐活动模型
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	Title       string `json:"title" gorm:"not null" binding:"required"`
	Description string `json:"description" gorm:"type:text"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category" gorm:"index"`

	// 募捐信息
	TargetAmount  decimal.Decimal `json:"target_amount" gorm:"type:decimal(14,2);not null"`
	CurrentAmount decimal.Decimal `json:"current_amount" gorm:"type:decimal(14,2);default:0"`
	MinAmount     decimal.Decimal `json:"min_amount" gorm:"type:decimal(14,2);default:0"`
	Currency      string          `json:"currency" gorm:"size:3;default:'KES'"`

	// 时间信息
	StartTime time.Time  `json:"start_time" gorm:"not null"`
	EndTime   *time.Time `json:"end_time"`

	// 状态
	Status CampaignStatus `json:"status" gorm:"index;default:'draft'"`

	// 创建者信息
	CreatorId   int64  `json:"creator_id" gorm:"not null"`
	CreatorName string `json:"creator_name"`
}

// CampaignStatus 活动状态
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"     // 草稿
	CampaignStatusActive    CampaignStatus = "active"    // 进行中
	CampaignStatusPaused    CampaignStatus = "paused"    // 已暂停
	CampaignStatusCompleted CampaignStatus = "completed" // 已达成
)

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
