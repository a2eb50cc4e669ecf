package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable 网关不可达（网络、超时、认证失败）
	ErrGatewayUnavailable = errors.New("支付网关不可用")
	// ErrGatewayRejected 网关拒绝了支付请求
	ErrGatewayRejected = errors.New("支付网关拒绝请求")
	// ErrMalformedNotification 回调报文无法解析
	ErrMalformedNotification = errors.New("回调报文格式错误")
)

// InitiateRequest 发起支付请求
type InitiateRequest struct {
	Amount      decimal.Decimal // 捐款金额
	Payer       string          // M-Pesa 为手机号，银行卡为邮箱
	Reference   string          // 商户侧关联码种子
	Description string          // 展示给付款人的描述
}

// InitiateResult 发起支付结果
type InitiateResult struct {
	CheckoutId  string // 渠道对账关联码
	RedirectURL string // 银行卡渠道的收银台地址，M-Pesa 为空
	RawResponse string // 渠道原始响应，留作审计
}

// VerifyStatus 主动查询结果状态
type VerifyStatus string

const (
	VerifyStatusSuccess   VerifyStatus = "success"
	VerifyStatusPending   VerifyStatus = "pending"
	VerifyStatusFailed    VerifyStatus = "failed"
	VerifyStatusCancelled VerifyStatus = "cancelled"
)

// Terminal 是否为终态
func (s VerifyStatus) Terminal() bool {
	return s != VerifyStatusPending
}

// VerifyResult 主动查询结果
type VerifyResult struct {
	Status        VerifyStatus
	Amount        decimal.Decimal
	ReceiptNumber string
	PaidAt        time.Time
	Description   string
}

// Notification 渠道回调解析结果
type Notification struct {
	CheckoutId    string
	Succeeded     bool
	Description   string
	Amount        decimal.Decimal
	ReceiptNumber string
}

// Gateway 支付渠道统一接口
type Gateway interface {
	// Initiate 向渠道发起支付
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error)
	// Verify 按关联码主动查询支付结果，可重复调用
	Verify(ctx context.Context, checkoutId string) (*VerifyResult, error)
	// ParseNotification 解析渠道回调报文，纯解析不发起 I/O
	ParseNotification(raw []byte) (*Notification, error)
}

// newHTTPClient 按配置创建带超时的 HTTP 客户端
func newHTTPClient(cfg config.PaymentConfig) *http.Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
