package notifier

import (
	"github.com/shopspring/decimal"
)

// EventType 推送事件类型
type EventType string

const (
	EventCampaignUpdated   EventType = "campaign_updated"   // 活动金额更新
	EventNewContribution   EventType = "new_contribution"   // 新捐款
	EventCampaignCompleted EventType = "campaign_completed" // 活动达成
)

// Event 推送给订阅者的事件，按活动分组下发
type Event struct {
	Type       EventType   `json:"type"`
	CampaignId int64       `json:"campaign_id"`
	Data       interface{} `json:"data"`
}

// ContributionSummary 捐款摘要，匿名捐款不携带姓名
type ContributionSummary struct {
	Amount    decimal.Decimal `json:"amount"`
	Channel   string          `json:"channel"`
	Anonymous bool            `json:"anonymous"`
	DonorName string          `json:"donor_name,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// CampaignUpdatedData 活动金额更新事件数据
type CampaignUpdatedData struct {
	CurrentAmount decimal.Decimal     `json:"current_amount"`
	TargetAmount  decimal.Decimal     `json:"target_amount"`
	Ratio         float64             `json:"ratio"`
	Contribution  ContributionSummary `json:"contribution"`
}

// CampaignCompletedData 活动达成事件数据
type CampaignCompletedData struct {
	TargetAmount      decimal.Decimal `json:"target_amount"`
	TotalRaised       decimal.Decimal `json:"total_raised"`
	ContributionCount int64           `json:"contribution_count"`
}
