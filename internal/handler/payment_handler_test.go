package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/logic"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/odhis101/k3c-platform/internal/notifier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testWebhookSecret = "sk_test_secret"

type paymentFixture struct {
	db     *gorm.DB
	router *gin.Engine
}

type dropNotifier struct{}

func (dropNotifier) Publish(ev notifier.Event) {}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.UserModel{},
		&model.CampaignModel{},
		&model.ContributionModel{},
		&model.TransactionModel{},
	))

	payCfg := config.PaymentConfig{TimeoutSeconds: 5}
	mpesaGw := gateway.NewMpesaGateway(config.MpesaConfig{}, payCfg)
	cardGw := gateway.NewCardGateway(config.CardConfig{SecretKey: testWebhookSecret}, payCfg)

	gateways := map[model.PaymentChannel]gateway.Gateway{
		model.PaymentChannelMpesa: mpesaGw,
		model.PaymentChannelCard:  cardGw,
	}
	contributeLogic := logic.NewContributionLogic(db, gateways, decimal.NewFromInt(1))
	reconcileLogic := logic.NewReconcileLogic(db, gateways, dropNotifier{})

	h := NewPaymentHandler(contributeLogic, reconcileLogic, mpesaGw, cardGw)

	r := gin.New()
	r.POST("/payments/mpesa/callback", h.MpesaCallback)
	r.POST("/payments/card/webhook", h.CardWebhook)
	r.GET("/payments/:checkout_id/status", h.PaymentStatus)

	return &paymentFixture{db: db, router: r}
}

func (f *paymentFixture) seedPending(t *testing.T, channel model.PaymentChannel, amount int64) (*model.ContributionModel, *model.CampaignModel) {
	t.Helper()
	campaign := &model.CampaignModel{
		Title:        "Roof Repair Fund",
		TargetAmount: decimal.NewFromInt(100000),
		Currency:     "KES",
		Status:       model.CampaignStatusActive,
		CreatorId:    1,
	}
	require.NoError(t, f.db.Create(campaign).Error)

	checkoutId := uuid.NewString()
	contribution := &model.ContributionModel{
		CampaignId: campaign.Id,
		GuestName:  "Jane",
		Amount:     decimal.NewFromInt(amount),
		Currency:   "KES",
		Channel:    channel,
		CheckoutId: checkoutId,
		Status:     model.ContributionStatusPending,
	}
	require.NoError(t, f.db.Create(contribution).Error)
	require.NoError(t, f.db.Create(&model.TransactionModel{
		ContributionId: contribution.Id,
		Provider:       channel,
		CheckoutId:     checkoutId,
		Amount:         contribution.Amount,
		Status:         model.TransactionStatusInitiated,
	}).Error)
	return contribution, campaign
}

func (f *paymentFixture) post(path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func mpesaCallbackBody(checkoutId string, resultCode int, receipt string) []byte {
	items := []map[string]interface{}{}
	if resultCode == 0 {
		items = append(items,
			map[string]interface{}{"Name": "Amount", "Value": 500.0},
			map[string]interface{}{"Name": "MpesaReceiptNumber", "Value": receipt},
		)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"Body": map[string]interface{}{
			"stkCallback": map[string]interface{}{
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": checkoutId,
				"ResultCode":        resultCode,
				"ResultDesc":        "Processed",
				"CallbackMetadata":  map[string]interface{}{"Item": items},
			},
		},
	})
	return body
}

func signCardBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func cardWebhookBody(reference, event string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": event,
		"data": map[string]interface{}{
			"id":               302961,
			"reference":        reference,
			"amount":           50000,
			"gateway_response": "Approved",
		},
	})
	return body
}

func TestMpesaCallbackSuccess(t *testing.T) {
	f := newPaymentFixture(t)
	contribution, campaign := f.seedPending(t, model.PaymentChannelMpesa, 500)

	w := f.post("/payments/mpesa/callback", mpesaCallbackBody(contribution.CheckoutId, 0, "NLJ7RT61SV"), nil)

	// 渠道要求的应答结构
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())

	var got model.CampaignModel
	require.NoError(t, f.db.First(&got, campaign.Id).Error)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(500)))

	var c model.ContributionModel
	require.NoError(t, f.db.First(&c, contribution.Id).Error)
	assert.Equal(t, model.ContributionStatusSuccess, c.Status)
	assert.Equal(t, "NLJ7RT61SV", c.ReceiptNumber)
}

func TestMpesaCallbackRedelivery(t *testing.T) {
	f := newPaymentFixture(t)
	contribution, campaign := f.seedPending(t, model.PaymentChannelMpesa, 500)

	body := mpesaCallbackBody(contribution.CheckoutId, 0, "NLJ7RT61SV")
	f.post("/payments/mpesa/callback", body, nil)
	w := f.post("/payments/mpesa/callback", body, nil)

	// 重投同样应答成功，但金额不重复累计
	assert.Equal(t, http.StatusOK, w.Code)
	var got model.CampaignModel
	require.NoError(t, f.db.First(&got, campaign.Id).Error)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(500)))
}

func TestMpesaCallbackMalformed(t *testing.T) {
	f := newPaymentFixture(t)

	w := f.post("/payments/mpesa/callback", []byte(`{"Body":{}}`), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":1,"ResultDesc":"Rejected"}`, w.Body.String())
}

func TestMpesaCallbackUnknownCheckout(t *testing.T) {
	f := newPaymentFixture(t)

	// 从未发起过的交易：应答成功阻断渠道重投
	w := f.post("/payments/mpesa/callback", mpesaCallbackBody("ws_CO_never_issued", 0, "R1"), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
}

func TestCardWebhookSignatureEnforced(t *testing.T) {
	f := newPaymentFixture(t)
	contribution, campaign := f.seedPending(t, model.PaymentChannelCard, 500)

	body := cardWebhookBody(contribution.CheckoutId, "charge.success")

	// 缺签名与错签名都被拒绝，且不进入对账
	w := f.post("/payments/card/webhook", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/payments/card/webhook", body, map[string]string{
		"X-Paystack-Signature": "deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var got model.CampaignModel
	require.NoError(t, f.db.First(&got, campaign.Id).Error)
	assert.True(t, got.CurrentAmount.IsZero())

	var tx model.TransactionModel
	require.NoError(t, f.db.Where("checkout_id = ?", contribution.CheckoutId).First(&tx).Error)
	assert.Equal(t, model.TransactionStatusInitiated, tx.Status)
}

func TestCardWebhookSuccess(t *testing.T) {
	f := newPaymentFixture(t)
	contribution, campaign := f.seedPending(t, model.PaymentChannelCard, 500)

	body := cardWebhookBody(contribution.CheckoutId, "charge.success")
	w := f.post("/payments/card/webhook", body, map[string]string{
		"X-Paystack-Signature": signCardBody(body),
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var got model.CampaignModel
	require.NoError(t, f.db.First(&got, campaign.Id).Error)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(500)))

	var c model.ContributionModel
	require.NoError(t, f.db.First(&c, contribution.Id).Error)
	assert.Equal(t, model.ContributionStatusSuccess, c.Status)
	assert.Equal(t, "302961", c.ReceiptNumber)
}

func TestCardWebhookUnknownReference(t *testing.T) {
	f := newPaymentFixture(t)

	body := cardWebhookBody("never-issued", "charge.success")
	w := f.post("/payments/card/webhook", body, map[string]string{
		"X-Paystack-Signature": signCardBody(body),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestPaymentStatusGuest(t *testing.T) {
	f := newPaymentFixture(t)
	contribution, _ := f.seedPending(t, model.PaymentChannelMpesa, 500)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+contribution.CheckoutId+"/status", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	// 游客捐款凭关联码即可查询
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), contribution.CheckoutId)
}

func TestPaymentStatusUnknown(t *testing.T) {
	f := newPaymentFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/never-issued/status", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
