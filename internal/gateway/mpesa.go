package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/shopspring/decimal"
)

const mpesaTimestampLayout = "20060102150405"

// MpesaGateway M-Pesa STK 推送渠道
type MpesaGateway struct {
	cfg    config.MpesaConfig
	client *http.Client
	now    func() time.Time
}

// NewMpesaGateway 创建 M-Pesa 渠道
func NewMpesaGateway(cfg config.MpesaConfig, payCfg config.PaymentConfig) *MpesaGateway {
	return &MpesaGateway{
		cfg:    cfg,
		client: newHTTPClient(payCfg),
		now:    time.Now,
	}
}

var phonePattern = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone 手机号归一化为 2547XXXXXXXX 形式
// 接受 07XXXXXXXX、+2547XXXXXXXX、2547XXXXXXXX 三种写法
func NormalizePhone(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")

	switch {
	case strings.HasPrefix(p, "+"):
		p = p[1:]
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	}

	if !phonePattern.MatchString(p) {
		return "", fmt.Errorf("无效的手机号: %s", raw)
	}
	return p, nil
}

// stkPassword STK 请求签名，必须与渠道约定的推导方式逐位一致:
// base64(shortcode + passkey + timestamp)
func stkPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// accessToken 每次调用前按需获取 OAuth 令牌，调用量低，不做缓存
func (g *MpesaGateway) accessToken(ctx context.Context) (string, error) {
	url := g.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: oauth status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGatewayUnavailable)
	}
	return body.AccessToken, nil
}

// Initiate 发起 STK 推送
func (g *MpesaGateway) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	phone, err := NormalizePhone(req.Payer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := g.now().Format(mpesaTimestampLayout)
	payload := map[string]interface{}{
		"BusinessShortCode": g.cfg.Shortcode,
		"Password":          stkPassword(g.cfg.Shortcode, g.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount.Round(0).IntPart(), // M-Pesa 只接受整数先令
		"PartyA":            phone,
		"PartyB":            g.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       g.cfg.CallbackURL,
		"AccountReference":  req.Reference,
		"TransactionDesc":   req.Description,
	}

	raw, err := g.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		ErrorMessage        string `json:"errorMessage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		desc := resp.ResponseDescription
		if desc == "" {
			desc = resp.ErrorMessage
		}
		return nil, fmt.Errorf("%w: %s", ErrGatewayRejected, desc)
	}

	return &InitiateResult{
		CheckoutId:  resp.CheckoutRequestID,
		RawResponse: string(raw),
	}, nil
}

// Verify 查询 STK 推送结果，可安全重复调用
func (g *MpesaGateway) Verify(ctx context.Context, checkoutId string) (*VerifyResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := g.now().Format(mpesaTimestampLayout)
	payload := map[string]interface{}{
		"BusinessShortCode": g.cfg.Shortcode,
		"Password":          stkPassword(g.cfg.Shortcode, g.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutId,
	}

	raw, err := g.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ResultCode string `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
		ErrorCode  string `json:"errorCode"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	// 交易还在处理中时查询接口返回错误码 500.001.1001
	if resp.ErrorCode == "500.001.1001" {
		return &VerifyResult{Status: VerifyStatusPending, Description: resp.ResultDesc}, nil
	}

	switch resp.ResultCode {
	case "0":
		return &VerifyResult{Status: VerifyStatusSuccess, PaidAt: g.now(), Description: resp.ResultDesc}, nil
	case "1032":
		// 用户在手机上取消
		return &VerifyResult{Status: VerifyStatusCancelled, Description: resp.ResultDesc}, nil
	default:
		return &VerifyResult{Status: VerifyStatusFailed, Description: resp.ResultDesc}, nil
	}
}

// stkCallback STK 回调报文结构
type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseNotification 解析 STK 回调报文
func (g *MpesaGateway) ParseNotification(raw []byte) (*Notification, error) {
	var cb stkCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	sc := cb.Body.StkCallback
	if sc.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedNotification)
	}

	n := &Notification{
		CheckoutId:  sc.CheckoutRequestID,
		Succeeded:   sc.ResultCode == 0,
		Description: sc.ResultDesc,
	}

	for _, item := range sc.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				n.Amount = decimal.NewFromFloat(v)
			}
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				n.ReceiptNumber = v
			}
		}
	}

	return n, nil
}

// post 携带 Bearer 令牌提交 JSON 请求
func (g *MpesaGateway) post(ctx context.Context, path, token string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	return raw, nil
}
