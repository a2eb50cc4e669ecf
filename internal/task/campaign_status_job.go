package task

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/odhis101/k3c-platform/internal/config"
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/odhis101/k3c-platform/internal/model"
	"gorm.io/gorm"
)

// CampaignStatusJob 活动状态更新任务
// 到开始时间的草稿转进行中，过结束时间仍未达标的转暂停，
// 已达成的活动不在这里改动
type CampaignStatusJob struct {
	db     *gorm.DB
	config *config.Config
}

// NewCampaignStatusJob 创建活动状态更新任务
func NewCampaignStatusJob(db *gorm.DB, cfg *config.Config) *CampaignStatusJob {
	return &CampaignStatusJob{
		db:     db,
		config: cfg,
	}
}

// GetName 获取任务名称
func (j *CampaignStatusJob) GetName() string {
	return "campaign_status_updater"
}

// GetSchedule 获取调度配置
func (j *CampaignStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *CampaignStatusJob) Execute() {
	logger.Debug("Starting campaign status update task")

	now := time.Now()

	var campaigns []model.CampaignModel
	err := j.db.Where("status IN ?", []model.CampaignStatus{
		model.CampaignStatusDraft,
		model.CampaignStatusActive,
	}).Find(&campaigns).Error
	if err != nil {
		logger.Error("Failed to fetch campaigns: %v", err)
		return
	}

	updatedCount := 0

	for _, campaign := range campaigns {
		var newStatus model.CampaignStatus
		shouldUpdate := false

		switch campaign.Status {
		case model.CampaignStatusDraft:
			// 检查是否到了开始时间
			if now.After(campaign.StartTime) {
				newStatus = model.CampaignStatusActive
				shouldUpdate = true
			}

		case model.CampaignStatusActive:
			// 过了结束时间仍未达标则暂停，达成迁移由对账流程负责
			if campaign.EndTime != nil && now.After(*campaign.EndTime) &&
				campaign.CurrentAmount.LessThan(campaign.TargetAmount) {
				newStatus = model.CampaignStatusPaused
				shouldUpdate = true
			}
		}

		if shouldUpdate {
			// 条件更新，避免覆盖对账流程刚写入的达成状态
			res := j.db.Model(&model.CampaignModel{}).
				Where("id = ? AND status = ?", campaign.Id, campaign.Status).
				Update("status", newStatus)
			if res.Error != nil {
				logger.Error("Failed to update campaign %d status: %v", campaign.Id, res.Error)
				continue
			}
			if res.RowsAffected > 0 {
				logger.Info("Updated campaign %d status from %s to %s",
					campaign.Id, campaign.Status, newStatus)
				updatedCount++
			}
		}
	}

	if updatedCount > 0 {
		logger.Info("Campaign status update completed. Updated %d campaigns", updatedCount)
	}
}
