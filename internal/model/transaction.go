package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionModel 支付渠道交易记录
type TransactionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContributionId int64 `json:"contribution_id" gorm:"not null;index"`

	// 渠道标识 (mpesa, card)
	Provider PaymentChannel `json:"provider" gorm:"not null"`

	// 对账关联码，渠道发起支付时返回，必须与捐款记录一致
	CheckoutId string `json:"checkout_id" gorm:"uniqueIndex;not null"`

	Amount decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`

	Status TransactionStatus `json:"status" gorm:"index;default:'initiated'"`

	// 渠道原始数据，留作对账审计
	ProviderResponse string `json:"provider_response" gorm:"type:text"`
	CallbackPayload  string `json:"callback_payload" gorm:"type:text"`
	ErrorMessage     string `json:"error_message"`
}

// TransactionStatus 交易状态
type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated" // 已发起
	TransactionStatusPending   TransactionStatus = "pending"   // 等待支付
	TransactionStatusSuccess   TransactionStatus = "success"   // 成功
	TransactionStatusFailed    TransactionStatus = "failed"    // 失败
	TransactionStatusCancelled TransactionStatus = "cancelled" // 用户取消
)

// OpenStatuses 尚未终结的交易状态，对账时只允许从这些状态迁移
func OpenStatuses() []TransactionStatus {
	return []TransactionStatus{TransactionStatusInitiated, TransactionStatusPending}
}

// TableName 自定义表名
func (TransactionModel) TableName() string {
	return "payment_transaction"
}
