package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/odhis101/k3c-platform/internal/model"
	"gorm.io/gorm"
)

// CampaignLogic 募捐活动业务逻辑
type CampaignLogic struct {
	db *gorm.DB
}

// NewCampaignLogic 创建活动业务逻辑
func NewCampaignLogic(db *gorm.DB) *CampaignLogic {
	return &CampaignLogic{db: db}
}

// CreateCampaign 创建活动
func (p *CampaignLogic) CreateCampaign(campaign *model.CampaignModel) error {
	// 验证活动数据
	if err := p.validateCampaign(campaign); err != nil {
		return err
	}

	// 设置默认值
	campaign.Status = model.CampaignStatusDraft
	campaign.CurrentAmount = campaign.CurrentAmount.Sub(campaign.CurrentAmount)

	if err := p.db.Create(campaign).Error; err != nil {
		return err
	}

	return nil
}

// CampaignFilter 活动列表过滤条件
type CampaignFilter struct {
	Status   model.CampaignStatus
	Category string
	Page     int
	PageSize int
}

// GetCampaigns 获取活动列表
func (p *CampaignLogic) GetCampaigns(filter CampaignFilter) ([]model.CampaignModel, int64, error) {
	query := p.db.Model(&model.CampaignModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动总数失败: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 10
	}

	var campaigns []model.CampaignModel
	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Offset(offset).
		Limit(filter.PageSize).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}

	return campaigns, total, nil
}

// GetCampaign 获取活动详情
func (p *CampaignLogic) GetCampaign(id int64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := p.db.First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("获取活动详情失败: %w", err)
	}

	return &campaign, nil
}

// UpdateCampaign 更新活动基本信息，金额与达成状态只由对账流程修改
func (p *CampaignLogic) UpdateCampaign(id int64, updates map[string]interface{}) (*model.CampaignModel, error) {
	campaign, err := p.GetCampaign(id)
	if err != nil {
		return nil, err
	}

	// 对账流程之外禁止改写金额与达成状态
	delete(updates, "current_amount")
	if campaign.Status == model.CampaignStatusCompleted {
		delete(updates, "status")
	}

	if err := p.db.Model(campaign).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新活动失败: %w", err)
	}
	return p.GetCampaign(id)
}

// DeleteCampaign 删除活动
func (p *CampaignLogic) DeleteCampaign(id int64) error {
	res := p.db.Delete(&model.CampaignModel{}, id)
	if res.Error != nil {
		return fmt.Errorf("删除活动失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// GetCampaignStats 获取活动统计信息
func (p *CampaignLogic) GetCampaignStats(id int64) (map[string]interface{}, error) {
	campaign, err := p.GetCampaign(id)
	if err != nil {
		return nil, err
	}

	var contributionCount int64
	if err := p.db.Model(&model.ContributionModel{}).
		Where("campaign_id = ? AND status = ?", id, model.ContributionStatusSuccess).
		Count(&contributionCount).Error; err != nil {
		return nil, fmt.Errorf("获取捐款数失败: %w", err)
	}

	var contributorCount int64
	if err := p.db.Model(&model.ContributionModel{}).
		Where("campaign_id = ? AND status = ? AND user_id IS NOT NULL", id, model.ContributionStatusSuccess).
		Distinct("user_id").
		Count(&contributorCount).Error; err != nil {
		return nil, fmt.Errorf("获取捐款人数失败: %w", err)
	}

	// 计算完成百分比
	completionPercentage := float64(0)
	if campaign.TargetAmount.IsPositive() {
		ratio, _ := campaign.CurrentAmount.Div(campaign.TargetAmount).Float64()
		completionPercentage = ratio * 100
	}

	// 计算剩余时间
	remainingTime := time.Duration(0)
	if campaign.Status == model.CampaignStatusActive && campaign.EndTime != nil && time.Now().Before(*campaign.EndTime) {
		remainingTime = time.Until(*campaign.EndTime)
	}

	return map[string]interface{}{
		"campaign_id":           campaign.Id,
		"current_amount":        campaign.CurrentAmount,
		"target_amount":         campaign.TargetAmount,
		"completion_percentage": completionPercentage,
		"contribution_count":    contributionCount,
		"contributor_count":     contributorCount,
		"remaining_time":        remainingTime.String(),
		"status":                campaign.Status,
	}, nil
}

// validateCampaign 验证活动数据
func (p *CampaignLogic) validateCampaign(campaign *model.CampaignModel) error {
	if campaign.Title == "" {
		return errors.New("活动标题不能为空")
	}
	if !campaign.TargetAmount.IsPositive() {
		return errors.New("目标金额必须大于0")
	}
	if campaign.EndTime != nil && campaign.StartTime.After(*campaign.EndTime) {
		return errors.New("开始时间不能晚于结束时间")
	}
	return nil
}
