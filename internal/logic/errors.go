package logic

import "errors"

var (
	// ErrCampaignNotFound 活动不存在
	ErrCampaignNotFound = errors.New("募捐活动不存在")
	// ErrCampaignNotActive 活动不在进行中
	ErrCampaignNotActive = errors.New("募捐活动不在进行中，无法接受捐款")
	// ErrContributionNotFound 捐款记录不存在
	ErrContributionNotFound = errors.New("捐款记录不存在")
	// ErrUnknownTransaction 回调引用了系统从未发起的交易
	ErrUnknownTransaction = errors.New("未知的支付交易")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("用户不存在")
	// ErrEmailTaken 邮箱已注册
	ErrEmailTaken = errors.New("邮箱已被注册")
	// ErrInvalidCredentials 登录凭证错误
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
)
