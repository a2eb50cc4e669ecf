package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContributionModel 捐款记录
type ContributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId int64 `json:"campaign_id" gorm:"not null;index"`

	// 捐款人信息，游客捐款时 UserId 为空，记录 GuestName/GuestEmail
	UserId     *int64 `json:"user_id" gorm:"index"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	Anonymous  bool   `json:"anonymous" gorm:"default:false"`

	// 支付信息
	Amount   decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Currency string          `json:"currency" gorm:"size:3;default:'KES'"`
	Channel  PaymentChannel  `json:"channel" gorm:"not null"`

	// 对账关联码，与 payment_transaction 表共享，支付渠道回调时据此匹配
	CheckoutId string `json:"checkout_id" gorm:"uniqueIndex;not null"`

	// 支付凭证号，成功后由渠道下发
	ReceiptNumber string `json:"receipt_number"`

	Status  ContributionStatus `json:"status" gorm:"index;default:'pending'"`
	Message string             `json:"message" gorm:"type:text"`
}

// ContributionStatus 捐款状态
type ContributionStatus string

const (
	ContributionStatusPending ContributionStatus = "pending" // 待支付
	ContributionStatusSuccess ContributionStatus = "success" // 成功
	ContributionStatusFailed  ContributionStatus = "failed"  // 失败
)

// PaymentChannel 支付渠道
type PaymentChannel string

const (
	PaymentChannelMpesa PaymentChannel = "mpesa" // M-Pesa 手机支付
	PaymentChannelCard  PaymentChannel = "card"  // 银行卡支付
)

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}
