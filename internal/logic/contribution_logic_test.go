package logic

import (
	"context"
	"testing"

	"github.com/odhis101/k3c-platform/internal/gateway"
	"github.com/odhis101/k3c-platform/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newContributionLogic(db *gorm.DB, gw gateway.Gateway, minAmount int64) *ContributionLogic {
	return NewContributionLogic(db, map[model.PaymentChannel]gateway.Gateway{
		model.PaymentChannelMpesa: gw,
	}, decimal.NewFromInt(minAmount))
}

func TestInitiateCreatesPair(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{}
	c := newContributionLogic(db, gw, 1)

	campaign := seedCampaign(t, db, 10000, 0)

	contribution, result, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(500),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
		GuestName:  "Jane",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.initiateCalls)
	assert.NotEmpty(t, result.CheckoutId)

	// 捐款与交易以同一关联码成对落库
	assert.Equal(t, result.CheckoutId, contribution.CheckoutId)
	assert.Equal(t, model.ContributionStatusPending, contribution.Status)

	var tx model.TransactionModel
	require.NoError(t, db.Where("checkout_id = ?", result.CheckoutId).First(&tx).Error)
	assert.Equal(t, contribution.Id, tx.ContributionId)
	assert.Equal(t, model.TransactionStatusInitiated, tx.Status)
	assert.Equal(t, model.PaymentChannelMpesa, tx.Provider)
}

func TestInitiateCampaignNotFound(t *testing.T) {
	db := newTestDB(t)
	c := newContributionLogic(db, &fakeGateway{}, 1)

	_, _, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: 999,
		Amount:     decimal.NewFromInt(500),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
		GuestName:  "Jane",
	})
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestInitiateCampaignNotActive(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{}
	c := newContributionLogic(db, gw, 1)

	campaign := seedCampaign(t, db, 10000, 0)
	require.NoError(t, db.Model(campaign).Update("status", model.CampaignStatusPaused).Error)

	_, _, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(500),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
		GuestName:  "Jane",
	})
	assert.ErrorIs(t, err, ErrCampaignNotActive)
	// 渠道从未被触达
	assert.Zero(t, gw.initiateCalls)
}

func TestInitiateBelowMinimum(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{}
	c := newContributionLogic(db, gw, 50)

	campaign := seedCampaign(t, db, 10000, 0)

	_, _, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(20),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
		GuestName:  "Jane",
	})
	assert.Error(t, err)
	assert.Zero(t, gw.initiateCalls)
}

func TestInitiateCampaignMinimumOverridesGlobal(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{}
	c := newContributionLogic(db, gw, 1)

	campaign := seedCampaign(t, db, 10000, 0)
	require.NoError(t, db.Model(campaign).Update("min_amount", decimal.NewFromInt(100)).Error)

	_, _, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(60),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
		GuestName:  "Jane",
	})
	assert.Error(t, err)
}

func TestInitiateGuestNeedsNameOrAnonymous(t *testing.T) {
	db := newTestDB(t)
	c := newContributionLogic(db, &fakeGateway{}, 1)

	campaign := seedCampaign(t, db, 10000, 0)

	in := &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(500),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
	}
	_, _, err := c.Initiate(context.Background(), in)
	assert.Error(t, err)

	// 选择匿名后可以不留姓名
	in.Anonymous = true
	_, _, err = c.Initiate(context.Background(), in)
	assert.NoError(t, err)
}

func TestInitiateGatewayFailureNothingPersisted(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{initiateErr: gateway.ErrGatewayUnavailable}
	c := newContributionLogic(db, gw, 1)

	campaign := seedCampaign(t, db, 10000, 0)

	_, _, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(500),
		Channel:    model.PaymentChannelMpesa,
		Payer:      "254712345678",
		GuestName:  "Jane",
	})
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)

	var count int64
	require.NoError(t, db.Model(&model.ContributionModel{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&model.TransactionModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitiateUnsupportedChannel(t *testing.T) {
	db := newTestDB(t)
	c := newContributionLogic(db, &fakeGateway{}, 1)

	campaign := seedCampaign(t, db, 10000, 0)

	_, _, err := c.Initiate(context.Background(), &InitiateInput{
		CampaignId: campaign.Id,
		Amount:     decimal.NewFromInt(500),
		Channel:    model.PaymentChannelCard,
		Payer:      "jane@example.com",
		GuestName:  "Jane",
	})
	assert.Error(t, err)
}

func TestGetByCheckoutId(t *testing.T) {
	db := newTestDB(t)
	c := newContributionLogic(db, &fakeGateway{}, 1)

	campaign := seedCampaign(t, db, 10000, 0)
	seeded, _ := seedPendingContribution(t, db, campaign.Id, 300, seedOpts{guestName: "Jane"})

	contribution, tx, err := c.GetByCheckoutId(seeded.CheckoutId)
	require.NoError(t, err)
	assert.Equal(t, seeded.Id, contribution.Id)
	assert.Equal(t, seeded.CheckoutId, tx.CheckoutId)

	_, _, err = c.GetByCheckoutId("never-issued")
	assert.ErrorIs(t, err, ErrContributionNotFound)
}

func TestGetCampaignContributionsOnlySuccessful(t *testing.T) {
	db := newTestDB(t)
	hub := &fakeNotifier{}
	c := newContributionLogic(db, &fakeGateway{}, 1)
	r := newReconcileLogic(db, hub, nil)

	campaign := seedCampaign(t, db, 10000, 0)
	settled, _ := seedPendingContribution(t, db, campaign.Id, 300, seedOpts{guestName: "Jane"})
	seedPendingContribution(t, db, campaign.Id, 200, seedOpts{guestName: "Ann"})

	require.NoError(t, r.Reconcile(settled.CheckoutId, &Outcome{Succeeded: true, ReceiptNumber: "R1"}))

	contributions, total, err := c.GetCampaignContributions(campaign.Id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, contributions, 1)
	assert.Equal(t, settled.Id, contributions[0].Id)
}
