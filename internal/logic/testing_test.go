package logic

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/odhis101/k3c-platform/internal/notifier"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

// fakeNotifier 收集事件供断言
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakeNotifier) Publish(ev notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) Events() []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notifier.Event, len(f.events))
	copy(out, f.events)
	return out
}

// fakeGateway 可编程的渠道桩
type fakeGateway struct {
	initiateResult *gateway.InitiateResult
	initiateErr    error
	verifyResult   *gateway.VerifyResult
	verifyErr      error
	initiateCalls  int
	verifyCalls    int
}

func (f *fakeGateway) Initiate(ctx context.Context, req *gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	f.initiateCalls++
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	if f.initiateResult != nil {
		return f.initiateResult, nil
	}
	return &gateway.InitiateResult{CheckoutId: req.Reference, RawResponse: "{}"}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, checkoutId string) (*gateway.VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResult, nil
}

func (f *fakeGateway) ParseNotification(raw []byte) (*gateway.Notification, error) {
	return nil, gateway.ErrMalformedNotification
}

func seedCampaign(t *testing.T, db *gorm.DB, target, current int64) *model.CampaignModel {
	t.Helper()
	campaign := &model.CampaignModel{
		Title:         "Roof Repair Fund",
		Category:      "building",
		TargetAmount:  decimal.NewFromInt(target),
		CurrentAmount: decimal.NewFromInt(current),
		Currency:      "KES",
		StartTime:     time.Now().Add(-time.Hour),
		Status:        model.CampaignStatusActive,
		CreatorId:     1,
	}
	require.NoError(t, db.Create(campaign).Error)
	return campaign
}

func seedUser(t *testing.T, db *gorm.DB, name string) *model.UserModel {
	t.Helper()
	user := &model.UserModel{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash: "x",
		Role:         model.UserRoleDonor,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type seedOpts struct {
	userId    *int64
	guestName string
	anonymous bool
}

func seedPendingContribution(t *testing.T, db *gorm.DB, campaignId int64, amount int64, opts seedOpts) (*model.ContributionModel, *model.TransactionModel) {
	t.Helper()
	checkoutId := uuid.NewString()
	contribution := &model.ContributionModel{
		CampaignId: campaignId,
		UserId:     opts.userId,
		GuestName:  opts.guestName,
		Anonymous:  opts.anonymous,
		Amount:     decimal.NewFromInt(amount),
		Currency:   "KES",
		Channel:    model.PaymentChannelMpesa,
		CheckoutId: checkoutId,
		Status:     model.ContributionStatusPending,
	}
	require.NoError(t, db.Create(contribution).Error)

	transaction := &model.TransactionModel{
		ContributionId: contribution.Id,
		Provider:       model.PaymentChannelMpesa,
		CheckoutId:     checkoutId,
		Amount:         contribution.Amount,
		Status:         model.TransactionStatusInitiated,
	}
	require.NoError(t, db.Create(transaction).Error)
	return contribution, transaction
}
