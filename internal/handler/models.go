package handler

import (
	"time"

	"github.com/shopspring/decimal"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Category     string          `json:"category"`
	TargetAmount decimal.Decimal `json:"target_amount" binding:"required"`
	MinAmount    decimal.Decimal `json:"min_amount"`
	Currency     string          `json:"currency"`
	StartTime    time.Time       `json:"start_time" binding:"required"`
	EndTime      *time.Time      `json:"end_time"`
}

// UpdateCampaignRequest 更新活动请求
type UpdateCampaignRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	ImageURL    *string         `json:"image_url"`
	Category    *string         `json:"category"`
	Status      *string         `json:"status"`
	MinAmount   decimal.Decimal `json:"min_amount"`
	EndTime     *time.Time      `json:"end_time"`
}

// InitiatePaymentRequest 发起捐款请求
type InitiatePaymentRequest struct {
	CampaignId int64           `json:"campaign_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Channel    string          `json:"channel" binding:"required,oneof=mpesa card"`

	// M-Pesa 填手机号，银行卡填邮箱
	Phone string `json:"phone"`
	Email string `json:"email"`

	Anonymous bool   `json:"anonymous"`
	GuestName string `json:"guest_name"`
	Message   string `json:"message"`
}
