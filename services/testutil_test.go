package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"content-reward-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.EngagementScore{},
		&models.BountyRequest{},
		&models.BountySubmission{},
		&models.BountyTransaction{},
		&models.PendingReward{},
		&models.RewardEvent{},
		&models.LotteryDrawing{},
		&models.LotteryEntry{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, accountTier models.AccountTier, trustTier models.TrustTier, balanceBase int64) *models.User {
	t.Helper()
	user := &models.User{
		ID:             uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Username:       "user-" + uuid.NewString()[:8],
		AccountTier:    accountTier,
		TrustTier:      trustTier,
		BalanceBase:    balanceBase,
		IsActive:       true,
	}
	if accountTier == models.AccountTierWalletFull {
		addr := "0x" + uuid.NewString()
		user.WalletAddress = &addr
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func balanceOf(t *testing.T, db *gorm.DB, externalUserID string) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("external_user_id = ?", externalUserID).First(&user).Error)
	return user.BalanceBase
}

// fakeMinter records mints and can be told to fail. onMint, when set, runs
// after a successful mint and before control returns, standing in for
// anything that races the caller's post-mint bookkeeping.
type fakeMinter struct {
	calls       int
	lastAddress string
	lastAmount  int64
	failWith    error
	onMint      func()
}

func (m *fakeMinter) Mint(_ context.Context, address string, amountBase int64) (string, error) {
	if m.failWith != nil {
		return "", m.failWith
	}
	m.calls++
	m.lastAddress = address
	m.lastAmount = amountBase
	if m.onMint != nil {
		m.onMint()
	}
	return fmt.Sprintf("0xmint%04d", m.calls), nil
}

var errChainDown = errors.New("chain unavailable")

// fakePromoter records spotlight calls.
type fakePromoter struct {
	promoted [][]string
}

func (p *fakePromoter) TopContent(_ context.Context, externalUserID string, limit int) ([]string, error) {
	ids := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		ids = append(ids, fmt.Sprintf("%s-content-%d", externalUserID, i))
	}
	return ids, nil
}

func (p *fakePromoter) Promote(_ context.Context, contentIDs []string, _ int) error {
	p.promoted = append(p.promoted, contentIDs)
	return nil
}

func newTestStack(t *testing.T) (*gorm.DB, *LedgerService, *RewardService, *fakeMinter) {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	minter := &fakeMinter{}
	rewards := NewRewardService(db, ledger, minter)
	return db, ledger, rewards, minter
}
