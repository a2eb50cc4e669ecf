package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/odhis101/k3c-platform/internal/logic"
	"github.com/odhis101/k3c-platform/internal/model"
)

// PaymentHandler 支付处理器
type PaymentHandler struct {
	contributeLogic *logic.ContributionLogic
	reconcileLogic  *logic.ReconcileLogic
	mpesaGw         *gateway.MpesaGateway
	cardGw          *gateway.CardGateway
}

// NewPaymentHandler 创建支付处理器
func NewPaymentHandler(
	contributeLogic *logic.ContributionLogic,
	reconcileLogic *logic.ReconcileLogic,
	mpesaGw *gateway.MpesaGateway,
	cardGw *gateway.CardGateway,
) *PaymentHandler {
	return &PaymentHandler{
		contributeLogic: contributeLogic,
		reconcileLogic:  reconcileLogic,
		mpesaGw:         mpesaGw,
		cardGw:          cardGw,
	}
}

// InitiatePayment 发起捐款
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel := model.PaymentChannel(req.Channel)
	payer := req.Phone
	if channel == model.PaymentChannelCard {
		payer = req.Email
	}

	in := &logic.InitiateInput{
		CampaignId: req.CampaignId,
		Amount:     req.Amount,
		Channel:    channel,
		Payer:      payer,
		GuestName:  req.GuestName,
		GuestEmail: req.Email,
		Anonymous:  req.Anonymous,
		Message:    req.Message,
	}

	// 登录用户捐款挂到账户上
	if userId := c.GetInt64("user_id"); userId > 0 {
		in.UserId = &userId
	}

	contribution, result, err := h.contributeLogic.Initiate(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, logic.ErrCampaignNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, logic.ErrCampaignNotActive):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, gateway.ErrGatewayRejected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"contribution_id": contribution.Id,
			"checkout_id":     contribution.CheckoutId,
			"redirect_url":    result.RedirectURL,
		},
	})
}

// MpesaCallback M-Pesa 回调
// 无论对账结果如何都按渠道要求的格式应答，避免渠道反复重投
func (h *PaymentHandler) MpesaCallback(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ResultCode": 1, "ResultDesc": "Rejected"})
		return
	}

	n, err := h.mpesaGw.ParseNotification(raw)
	if err != nil {
		logger.Warn("Malformed M-Pesa callback: %v", err)
		c.JSON(http.StatusOK, gin.H{"ResultCode": 1, "ResultDesc": "Rejected"})
		return
	}

	err = h.reconcileLogic.Reconcile(n.CheckoutId, &logic.Outcome{
		Succeeded:     n.Succeeded,
		Amount:        n.Amount,
		ReceiptNumber: n.ReceiptNumber,
		Description:   n.Description,
		RawPayload:    string(raw),
	})
	if err != nil {
		if errors.Is(err, logic.ErrUnknownTransaction) {
			// 从未发起过的交易：应答成功阻断重投，但留下告警
			logger.Warn("M-Pesa callback for unknown checkout %s", n.CheckoutId)
			c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
			return
		}
		// 持久化失败让渠道重投
		logger.Error("Failed to reconcile M-Pesa callback %s: %v", n.CheckoutId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ResultCode": 1, "ResultDesc": "Rejected"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// CardWebhook 银行卡渠道 webhook
// 签名校验不通过的报文一律拒绝，不进入对账
func (h *PaymentHandler) CardWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取报文失败"})
		return
	}

	signature := c.GetHeader("X-Paystack-Signature")
	if !h.cardGw.VerifySignature(raw, signature) {
		logger.Warn("Card webhook signature mismatch from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "签名校验失败"})
		return
	}

	n, err := h.cardGw.ParseNotification(raw)
	if err != nil {
		logger.Warn("Malformed card webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "报文格式错误"})
		return
	}

	err = h.reconcileLogic.Reconcile(n.CheckoutId, &logic.Outcome{
		Succeeded:     n.Succeeded,
		Amount:        n.Amount,
		ReceiptNumber: n.ReceiptNumber,
		Description:   n.Description,
		RawPayload:    string(raw),
	})
	if err != nil {
		if errors.Is(err, logic.ErrUnknownTransaction) {
			logger.Warn("Card webhook for unknown reference %s", n.CheckoutId)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		logger.Error("Failed to reconcile card webhook %s: %v", n.CheckoutId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "对账失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PaymentStatus 查询捐款状态
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	checkoutId := c.Param("checkout_id")

	contribution, transaction, err := h.contributeLogic.GetByCheckoutId(checkoutId)
	if err != nil {
		if errors.Is(err, logic.ErrContributionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 登记在账户名下的捐款只有本人或管理员可查，游客捐款凭关联码即可
	if contribution.UserId != nil {
		userId := c.GetInt64("user_id")
		role := model.UserRole(c.GetString("role"))
		if userId != *contribution.UserId && role != model.UserRoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "无权查看该捐款记录"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"contribution": contribution,
			"transaction": gin.H{
				"status":         transaction.Status,
				"provider":       transaction.Provider,
				"error_message":  transaction.ErrorMessage,
				"receipt_number": contribution.ReceiptNumber,
			},
		},
	})
}

// VerifyPayment 客户端触发的主动对账
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	checkoutId := c.Param("checkout_id")

	transaction, err := h.reconcileLogic.VerifyAndReconcile(c.Request.Context(), checkoutId)
	if err != nil {
		switch {
		case errors.Is(err, logic.ErrUnknownTransaction):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"checkout_id": transaction.CheckoutId,
			"status":      transaction.Status,
		},
	})
}
