package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/shopspring/decimal"
)

// CardGateway 银行卡收银台渠道 (Paystack)
type CardGateway struct {
	cfg    config.CardConfig
	client *http.Client
}

// NewCardGateway 创建银行卡渠道
func NewCardGateway(cfg config.CardConfig, payCfg config.PaymentConfig) *CardGateway {
	return &CardGateway{
		cfg:    cfg,
		client: newHTTPClient(payCfg),
	}
}

// minorUnits 渠道按货币最小单位计价，金额 ×100 取整
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Initiate 创建收银台会话，关联码即商户引用号
func (g *CardGateway) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	payload := map[string]interface{}{
		"email":        req.Payer,
		"amount":       minorUnits(req.Amount),
		"reference":    req.Reference,
		"currency":     "KES",
		"callback_url": g.cfg.CallbackURL,
		"metadata": map[string]interface{}{
			"description": req.Description,
		},
	}

	raw, err := g.request(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if !resp.Status || resp.Data.Reference == "" {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, resp.Message)
	}

	return &InitiateResult{
		CheckoutId:  resp.Data.Reference,
		RedirectURL: resp.Data.AuthorizationURL,
		RawResponse: string(raw),
	}, nil
}

// Verify 按引用号查询交易，可安全重复调用
func (g *CardGateway) Verify(ctx context.Context, checkoutId string) (*VerifyResult, error) {
	raw, err := g.request(ctx, http.MethodGet, "/transaction/verify/"+checkoutId, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Id              int64  `json:"id"`
			Status          string `json:"status"`
			Amount          int64  `json:"amount"`
			GatewayResponse string `json:"gateway_response"`
			PaidAt          string `json:"paid_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, resp.Message)
	}

	result := &VerifyResult{
		Amount:      decimal.NewFromInt(resp.Data.Amount).Div(decimal.NewFromInt(100)),
		Description: resp.Data.GatewayResponse,
	}

	switch resp.Data.Status {
	case "success":
		result.Status = VerifyStatusSuccess
		result.ReceiptNumber = fmt.Sprintf("%d", resp.Data.Id)
		if t, err := time.Parse(time.RFC3339, resp.Data.PaidAt); err == nil {
			result.PaidAt = t
		}
	case "failed":
		result.Status = VerifyStatusFailed
	case "abandoned":
		result.Status = VerifyStatusCancelled
	default:
		result.Status = VerifyStatusPending
	}
	return result, nil
}

// VerifySignature 校验回调签名: HMAC-SHA512(原始报文, secret key)
// 回调处理必须先通过签名校验再信任报文内容
func (g *CardGateway) VerifySignature(rawBody []byte, signatureHeader string) bool {
	mac := hmac.New(sha512.New, []byte(g.cfg.SecretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// ParseNotification 解析 webhook 报文
func (g *CardGateway) ParseNotification(raw []byte) (*Notification, error) {
	var event struct {
		Event string `json:"event"`
		Data  struct {
			Id              int64  `json:"id"`
			Reference       string `json:"reference"`
			Amount          int64  `json:"amount"`
			GatewayResponse string `json:"gateway_response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if event.Event == "" || event.Data.Reference == "" {
		return nil, fmt.Errorf("%w: missing event or reference", ErrMalformedNotification)
	}

	n := &Notification{
		CheckoutId:  event.Data.Reference,
		Succeeded:   event.Event == "charge.success",
		Description: event.Data.GatewayResponse,
		Amount:      decimal.NewFromInt(event.Data.Amount).Div(decimal.NewFromInt(100)),
	}
	if n.Succeeded {
		n.ReceiptNumber = fmt.Sprintf("%d", event.Data.Id)
	}
	return n, nil
}

// request 携带 API 密钥提交请求
func (g *CardGateway) request(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: unauthorized", ErrGatewayUnavailable)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}
	return raw, nil
}
