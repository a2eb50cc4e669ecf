package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContributionLogic 捐款业务逻辑
type ContributionLogic struct {
	db        *gorm.DB
	gateways  map[model.PaymentChannel]gateway.Gateway
	minAmount decimal.Decimal
}

// NewContributionLogic 创建捐款业务逻辑
func NewContributionLogic(db *gorm.DB, gateways map[model.PaymentChannel]gateway.Gateway, minAmount decimal.Decimal) *ContributionLogic {
	return &ContributionLogic{db: db, gateways: gateways, minAmount: minAmount}
}

// InitiateInput 发起捐款入参
type InitiateInput struct {
	CampaignId int64
	Amount     decimal.Decimal
	Channel    model.PaymentChannel
	Payer      string // M-Pesa 为手机号，银行卡为邮箱
	UserId     *int64 // 游客捐款为空
	GuestName  string
	GuestEmail string
	Anonymous  bool
	Message    string
}

// Initiate 发起捐款：请求渠道创建支付，成功后落库捐款记录与交易记录，
// 二者共享同一个对账关联码，后续回调据此匹配
func (c *ContributionLogic) Initiate(ctx context.Context, in *InitiateInput) (*model.ContributionModel, *gateway.InitiateResult, error) {
	if err := c.validateInitiate(in); err != nil {
		return nil, nil, err
	}

	// 检查活动是否存在且在进行中
	var campaign model.CampaignModel
	if err := c.db.First(&campaign, in.CampaignId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCampaignNotFound
		}
		return nil, nil, err
	}
	if campaign.Status != model.CampaignStatusActive {
		return nil, nil, ErrCampaignNotActive
	}

	// 检查是否低于最低捐款限制
	min := c.minAmount
	if campaign.MinAmount.GreaterThan(min) {
		min = campaign.MinAmount
	}
	if in.Amount.LessThan(min) {
		return nil, nil, fmt.Errorf("捐款金额低于最低限制 %s", min.String())
	}

	gw, ok := c.gateways[in.Channel]
	if !ok {
		return nil, nil, fmt.Errorf("不支持的支付渠道: %s", in.Channel)
	}

	// 请求渠道创建支付，失败直接上抛，不落库不重试
	result, err := gw.Initiate(ctx, &gateway.InitiateRequest{
		Amount:      in.Amount,
		Payer:       in.Payer,
		Reference:   uuid.NewString(),
		Description: fmt.Sprintf("Donation to %s", campaign.Title),
	})
	if err != nil {
		return nil, nil, err
	}

	contribution := &model.ContributionModel{
		CampaignId: in.CampaignId,
		UserId:     in.UserId,
		GuestName:  in.GuestName,
		GuestEmail: in.GuestEmail,
		Anonymous:  in.Anonymous,
		Amount:     in.Amount,
		Currency:   campaign.Currency,
		Channel:    in.Channel,
		CheckoutId: result.CheckoutId,
		Status:     model.ContributionStatusPending,
		Message:    in.Message,
	}

	// 捐款记录与交易记录同一事务内成对创建
	err = c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(contribution).Error; err != nil {
			return err
		}
		transaction := &model.TransactionModel{
			ContributionId:   contribution.Id,
			Provider:         in.Channel,
			CheckoutId:       result.CheckoutId,
			Amount:           in.Amount,
			Status:           model.TransactionStatusInitiated,
			ProviderResponse: result.RawResponse,
		}
		return tx.Create(transaction).Error
	})
	if err != nil {
		return nil, nil, fmt.Errorf("创建捐款记录失败: %w", err)
	}

	return contribution, result, nil
}

// GetByCheckoutId 按关联码获取捐款记录及其交易记录
func (c *ContributionLogic) GetByCheckoutId(checkoutId string) (*model.ContributionModel, *model.TransactionModel, error) {
	var contribution model.ContributionModel
	if err := c.db.Where("checkout_id = ?", checkoutId).First(&contribution).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrContributionNotFound
		}
		return nil, nil, err
	}

	var transaction model.TransactionModel
	if err := c.db.Where("contribution_id = ?", contribution.Id).First(&transaction).Error; err != nil {
		return nil, nil, err
	}

	return &contribution, &transaction, nil
}

// GetCampaignContributions 获取活动捐款记录
func (c *ContributionLogic) GetCampaignContributions(campaignId int64, page, pageSize int) ([]model.ContributionModel, int64, error) {
	var total int64
	if err := c.db.Model(&model.ContributionModel{}).
		Where("campaign_id = ? AND status = ?", campaignId, model.ContributionStatusSuccess).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var contributions []model.ContributionModel
	offset := (page - 1) * pageSize
	if err := c.db.Where("campaign_id = ? AND status = ?", campaignId, model.ContributionStatusSuccess).
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&contributions).Error; err != nil {
		return nil, 0, err
	}

	return contributions, total, nil
}

// validateInitiate 验证捐款入参
func (c *ContributionLogic) validateInitiate(in *InitiateInput) error {
	if in.CampaignId == 0 {
		return errors.New("活动ID不能为空")
	}
	if !in.Amount.IsPositive() {
		return errors.New("捐款金额必须大于0")
	}
	if in.Payer == "" {
		return errors.New("付款人信息不能为空")
	}
	if in.UserId == nil && !in.Anonymous && in.GuestName == "" {
		return errors.New("游客捐款需填写姓名或选择匿名")
	}
	return nil
}
