package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/odhis101/k3c-platform/internal/notifier"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Notifier 对账完成后的事件出口，尽力而为，失败不影响对账结果
type Notifier interface {
	Publish(ev notifier.Event)
}

// Outcome 渠道给出的支付结果
type Outcome struct {
	Succeeded     bool
	Amount        decimal.Decimal // 实际到账金额，可为零值
	ReceiptNumber string          // 渠道凭证号，成功时下发
	Description   string          // 渠道结果描述
	RawPayload    string          // 原始回调报文，留作审计
}

// ReconcileLogic 对账引擎：把渠道结果落到交易、捐款与活动三张表上
type ReconcileLogic struct {
	db       *gorm.DB
	gateways map[model.PaymentChannel]gateway.Gateway
	hub      Notifier
}

// NewReconcileLogic 创建对账引擎
func NewReconcileLogic(db *gorm.DB, gateways map[model.PaymentChannel]gateway.Gateway, hub Notifier) *ReconcileLogic {
	return &ReconcileLogic{db: db, gateways: gateways, hub: hub}
}

// Reconcile 按关联码应用渠道结果
// 同一关联码重复调用是安全的：状态迁移采用条件更新，只有第一次
// 能把交易从非终态迁走，之后的调用不会重复累计活动金额
func (r *ReconcileLogic) Reconcile(checkoutId string, outcome *Outcome) error {
	var events []notifier.Event

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var txRecord model.TransactionModel
		if err := tx.Where("checkout_id = ?", checkoutId).First(&txRecord).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownTransaction
			}
			return err
		}

		newStatus := model.TransactionStatusFailed
		if outcome.Succeeded {
			newStatus = model.TransactionStatusSuccess
		}

		updates := map[string]interface{}{
			"status":           newStatus,
			"callback_payload": outcome.RawPayload,
		}
		if !outcome.Succeeded {
			updates["error_message"] = outcome.Description
		}

		// 条件更新：只允许从非终态迁移，重复回调在这里被挡掉
		res := tx.Model(&model.TransactionModel{}).
			Where("checkout_id = ? AND status IN ?", checkoutId, model.OpenStatuses()).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			logger.Debug("Transaction %s already reconciled, skipping", checkoutId)
			return nil
		}

		// 捐款记录与交易同步迁移
		var contribution model.ContributionModel
		if err := tx.First(&contribution, txRecord.ContributionId).Error; err != nil {
			return fmt.Errorf("加载捐款记录失败: %w", err)
		}

		contribUpdates := map[string]interface{}{
			"status": model.ContributionStatusFailed,
		}
		if outcome.Succeeded {
			contribUpdates["status"] = model.ContributionStatusSuccess
			contribUpdates["receipt_number"] = outcome.ReceiptNumber
		}
		if err := tx.Model(&contribution).Updates(contribUpdates).Error; err != nil {
			return err
		}

		// 失败结果到此为止，不动活动金额也不推事件
		if !outcome.Succeeded {
			return nil
		}

		// 累计活动金额
		if err := tx.Model(&model.CampaignModel{}).
			Where("id = ?", contribution.CampaignId).
			Update("current_amount", gorm.Expr("current_amount + ?", contribution.Amount)).Error; err != nil {
			return err
		}

		var campaign model.CampaignModel
		if err := tx.First(&campaign, contribution.CampaignId).Error; err != nil {
			return err
		}

		summary := notifier.ContributionSummary{
			Amount:    contribution.Amount,
			Channel:   string(contribution.Channel),
			Anonymous: contribution.Anonymous,
			Message:   contribution.Message,
		}
		if !contribution.Anonymous {
			summary.DonorName = r.donorName(tx, &contribution)
		}

		ratio := float64(0)
		if campaign.TargetAmount.IsPositive() {
			ratio, _ = campaign.CurrentAmount.Div(campaign.TargetAmount).Float64()
		}

		events = append(events,
			notifier.Event{
				Type:       notifier.EventCampaignUpdated,
				CampaignId: campaign.Id,
				Data: notifier.CampaignUpdatedData{
					CurrentAmount: campaign.CurrentAmount,
					TargetAmount:  campaign.TargetAmount,
					Ratio:         ratio,
					Contribution:  summary,
				},
			},
			notifier.Event{
				Type:       notifier.EventNewContribution,
				CampaignId: campaign.Id,
				Data:       summary,
			},
		)

		// 达成检查放在累计之后，达成迁移单向，已达成的活动不再改状态
		if campaign.Status != model.CampaignStatusCompleted &&
			campaign.CurrentAmount.GreaterThanOrEqual(campaign.TargetAmount) {
			if err := tx.Model(&campaign).Update("status", model.CampaignStatusCompleted).Error; err != nil {
				return err
			}

			var count int64
			if err := tx.Model(&model.ContributionModel{}).
				Where("campaign_id = ? AND status = ?", campaign.Id, model.ContributionStatusSuccess).
				Count(&count).Error; err != nil {
				return err
			}

			events = append(events, notifier.Event{
				Type:       notifier.EventCampaignCompleted,
				CampaignId: campaign.Id,
				Data: notifier.CampaignCompletedData{
					TargetAmount:      campaign.TargetAmount,
					TotalRaised:       campaign.CurrentAmount,
					ContributionCount: count,
				},
			})
			logger.Info("Campaign %d reached its target of %s", campaign.Id, campaign.TargetAmount.String())
		}

		return nil
	})
	if err != nil {
		return err
	}

	// 事件在事务提交后才发布，推送失败不回滚对账
	for _, ev := range events {
		r.hub.Publish(ev)
	}
	return nil
}

// VerifyAndReconcile 主动向渠道查询并对账，用于客户端轮询与挂起交易巡检
func (r *ReconcileLogic) VerifyAndReconcile(ctx context.Context, checkoutId string) (*model.TransactionModel, error) {
	var txRecord model.TransactionModel
	if err := r.db.Where("checkout_id = ?", checkoutId).First(&txRecord).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownTransaction
		}
		return nil, err
	}

	// 已是终态，直接返回
	if txRecord.Status != model.TransactionStatusInitiated && txRecord.Status != model.TransactionStatusPending {
		return &txRecord, nil
	}

	gw, ok := r.gateways[txRecord.Provider]
	if !ok {
		return nil, fmt.Errorf("不支持的支付渠道: %s", txRecord.Provider)
	}

	result, err := gw.Verify(ctx, checkoutId)
	if err != nil {
		return nil, err
	}

	// 渠道仍在处理中，保持挂起等待下一轮
	if !result.Status.Terminal() {
		r.db.Model(&model.TransactionModel{}).
			Where("checkout_id = ? AND status = ?", checkoutId, model.TransactionStatusInitiated).
			Update("status", model.TransactionStatusPending)
		return &txRecord, nil
	}

	outcome := &Outcome{
		Succeeded:     result.Status == gateway.VerifyStatusSuccess,
		Amount:        result.Amount,
		ReceiptNumber: result.ReceiptNumber,
		Description:   result.Description,
	}
	if err := r.Reconcile(checkoutId, outcome); err != nil {
		return nil, err
	}

	if err := r.db.Where("checkout_id = ?", checkoutId).First(&txRecord).Error; err != nil {
		return nil, err
	}
	return &txRecord, nil
}

// donorName 解析捐款人展示名：注册用户取账户姓名，游客取登记姓名
func (r *ReconcileLogic) donorName(tx *gorm.DB, contribution *model.ContributionModel) string {
	if contribution.UserId != nil {
		var user model.UserModel
		if err := tx.First(&user, *contribution.UserId).Error; err == nil {
			return user.Name
		}
		return ""
	}
	return contribution.GuestName
}
