package services

import (
	"context"
	"testing"
	"time"

	"content-reward-system/models"
	"content-reward-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBountyStack(t *testing.T) (*gorm.DB, *BountyService, *fakeMinter) {
	t.Helper()
	db, ledger, rewards, minter := newTestStack(t)
	return db, NewBountyService(db, ledger, rewards), minter
}

func openBounty(t *testing.T, bounties *BountyService, creatorID string, stake float64) *models.BountyRequest {
	t.Helper()
	bounty, err := bounties.Create(creatorID, "best ramen downtown", "walking distance from the office",
		utils.ToBaseUnits(stake), time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	return bounty
}

// backdate pins a submission's created_at so ordering assertions do not depend
// on sqlite timestamp resolution.
func backdate(t *testing.T, db *gorm.DB, submissionID string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.BountySubmission{}).
		Where("id = ?", submissionID).Update("created_at", at).Error)
}

func forceExpired(t *testing.T, db *gorm.DB, bountyID string) {
	t.Helper()
	require.NoError(t, db.Model(&models.BountyRequest{}).
		Where("id = ?", bountyID).Update("expires_at", time.Now().Add(-time.Hour)).Error)
}

func TestBountyCreateEscrowsStake(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))

	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)

	assert.Equal(t, models.BountyStatusOpen, bounty.Status)
	assert.Equal(t, utils.ToBaseUnits(90), balanceOf(t, db, creator.ExternalUserID))

	var stakeTx models.BountyTransaction
	require.NoError(t, db.Where("bounty_id = ? AND type = ?", bounty.ID, models.BountyTxStake).First(&stakeTx).Error)
	assert.Equal(t, utils.ToBaseUnits(10), stakeTx.AmountBase)
}

func TestBountyCreateRejectsUnderMinStake(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))

	_, err := bounties.Create(creator.ExternalUserID, "t", "d", utils.ToBaseUnits(0.5), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, utils.ToBaseUnits(100), balanceOf(t, db, creator.ExternalUserID))
}

func TestBountyCreateRejectsBadExpiry(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))

	_, err := bounties.Create(creator.ExternalUserID, "t", "d", utils.ToBaseUnits(10), time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = bounties.Create(creator.ExternalUserID, "t", "d", utils.ToBaseUnits(10), time.Now().Add(60*24*time.Hour))
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, utils.ToBaseUnits(100), balanceOf(t, db, creator.ExternalUserID))
}

func TestBountyTipRejectsUnderMinimum(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	submission, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)
	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)

	err = bounties.Tip(bounty.ID, creator.ExternalUserID, submission.ID, utils.ToBaseUnits(0.05))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBountyCreateInsufficientBalance(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(5))

	_, err := bounties.Create(creator.ExternalUserID, "t", "d", utils.ToBaseUnits(10), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, utils.ToBaseUnits(5), balanceOf(t, db, creator.ExternalUserID))
}

func TestBountySubmitRejectsSelfAndDuplicates(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	other := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)

	_, err := bounties.Submit(bounty.ID, creator.ExternalUserID, "rest-1", "my own place")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "great broth")
	require.NoError(t, err)

	// Same responder again.
	_, err = bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-2", "another idea")
	assert.ErrorIs(t, err, ErrConflict)

	// Same restaurant from a different responder.
	_, err = bounties.Submit(bounty.ID, other.ExternalUserID, "rest-1", "me too")
	assert.ErrorIs(t, err, ErrConflict)

	fresh, err := bounties.Get(bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.ResponseCount)
}

func TestBountyAwardPaysFirstResponderAndBurnsFee(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	early := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	late := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)

	s1, err := bounties.Submit(bounty.ID, early.ExternalUserID, "rest-9", "hidden gem")
	require.NoError(t, err)
	s2, err := bounties.Submit(bounty.ID, late.ExternalUserID, "rest-7", "solid pick")
	require.NoError(t, err)
	backdate(t, db, s1.ID, time.Now().Add(-2*time.Minute))
	backdate(t, db, s2.ID, time.Now().Add(-1*time.Minute))

	winner, err := bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-9")
	require.NoError(t, err)
	assert.Equal(t, s1.ID, winner.ID)
	assert.True(t, winner.IsWinner)

	// 10 staked, 10% burned: 9 to the winner.
	assert.Equal(t, utils.ToBaseUnits(9), balanceOf(t, db, early.ExternalUserID))
	assert.Equal(t, int64(0), balanceOf(t, db, late.ExternalUserID))

	fresh, err := bounties.Get(bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusClosed, fresh.Status)
	require.NotNil(t, fresh.AwardedRespID)
	assert.Equal(t, s1.ID, *fresh.AwardedRespID)

	var burnTx models.BountyTransaction
	require.NoError(t, db.Where("bounty_id = ? AND type = ?", bounty.ID, models.BountyTxBurn).First(&burnTx).Error)
	assert.Equal(t, utils.ToBaseUnits(1), burnTx.AmountBase)
}

func TestBountyAwardOnlyByCreator(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	_, err = bounties.Award(context.Background(), bounty.ID, responder.ExternalUserID, "rest-1")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestBountyDoubleAwardPaysOnce(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)

	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	assert.ErrorIs(t, err, ErrAlreadyAwarded)

	assert.Equal(t, utils.ToBaseUnits(9), balanceOf(t, db, responder.ExternalUserID))

	var awardTxs int64
	db.Model(&models.BountyTransaction{}).
		Where("bounty_id = ? AND type = ?", bounty.ID, models.BountyTxAward).Count(&awardTxs)
	assert.Equal(t, int64(1), awardTxs)
}

func TestBountyAwardUnknownRestaurant(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBountyAwardRollsBackOnSettlementFailure(t *testing.T) {
	db, bounties, minter := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	// A wallet holder is paid by mint; a dying chain must not strand the escrow.
	responder := createUser(t, db, models.AccountTierWalletFull, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	minter.failWith = errChainDown
	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	assert.ErrorIs(t, err, ErrSettlementFailed)

	fresh, err := bounties.Get(bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusOpen, fresh.Status)
	assert.Nil(t, fresh.AwardedRespID)

	// Chain recovers, the retry goes through.
	minter.failWith = nil
	winner, err := bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)
	assert.True(t, winner.IsWinner)
	assert.Equal(t, utils.ToBaseUnits(9), balanceOf(t, db, responder.ExternalUserID))
}

func TestBountyAwardKeepsClosedWhenMintCommittedButMirrorLags(t *testing.T) {
	db, bounties, minter := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierWalletFull, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	// The mint lands on chain, then the responder's row disappears before the
	// ledger mirror credit, so the mirror write fails mid-settlement.
	minter.onMint = func() {
		require.NoError(t, db.Where("external_user_id = ?", responder.ExternalUserID).
			Delete(&models.User{}).Error)
	}

	winner, err := bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)
	assert.True(t, winner.IsWinner)
	assert.Equal(t, 1, minter.calls)

	// Tokens exist on chain; the bounty must not reopen for a second mint.
	fresh, err := bounties.Get(bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusClosed, fresh.Status)
	require.NotNil(t, fresh.AwardedRespID)

	minter.onMint = nil
	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	assert.ErrorIs(t, err, ErrAlreadyAwarded)
	assert.Equal(t, 1, minter.calls)
}

func TestBountyLazyExpiryBlocksSubmissions(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	forceExpired(t, db, bounty.ID)

	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "too late")
	assert.ErrorIs(t, err, ErrInvalidState)

	fresh, err := bounties.Get(bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusExpired, fresh.Status)
}

func TestBountyAwardAfterExpiryStillValid(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)
	forceExpired(t, db, bounty.ID)

	// Expiry stops new submissions, not the creator picking a winner.
	winner, err := bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)
	assert.Equal(t, responder.ExternalUserID, winner.ResponderID)
}

func TestBountyRefundRequiresExpiryAndZeroResponses(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)

	answered := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(answered.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)
	forceExpired(t, db, answered.ID)
	assert.ErrorIs(t, bounties.Refund(answered.ID, creator.ExternalUserID), ErrInvalidState)

	unanswered := openBounty(t, bounties, creator.ExternalUserID, 10)
	// Still open, no refund yet.
	assert.ErrorIs(t, bounties.Refund(unanswered.ID, creator.ExternalUserID), ErrInvalidState)

	forceExpired(t, db, unanswered.ID)
	require.NoError(t, bounties.Refund(unanswered.ID, creator.ExternalUserID))
	assert.Equal(t, utils.ToBaseUnits(90), balanceOf(t, db, creator.ExternalUserID))

	// Second refund of the same stake must not pay again.
	assert.ErrorIs(t, bounties.Refund(unanswered.ID, creator.ExternalUserID), ErrInvalidState)
	assert.Equal(t, utils.ToBaseUnits(90), balanceOf(t, db, creator.ExternalUserID))
}

func TestBountyCancelReturnsStake(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)

	require.NoError(t, bounties.Cancel(bounty.ID, creator.ExternalUserID))
	assert.Equal(t, utils.ToBaseUnits(100), balanceOf(t, db, creator.ExternalUserID))

	fresh, err := bounties.Get(bounty.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BountyStatusCancelled, fresh.Status)
}

func TestBountyCancelBlockedByResponses(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	assert.ErrorIs(t, bounties.Cancel(bounty.ID, creator.ExternalUserID), ErrInvalidState)
}

func TestBountyTipAfterAward(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	submission, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)

	// Tips only flow after the award settles.
	assert.ErrorIs(t, bounties.Tip(bounty.ID, creator.ExternalUserID, submission.ID, utils.ToBaseUnits(2)), ErrInvalidState)

	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)

	require.NoError(t, bounties.Tip(bounty.ID, creator.ExternalUserID, submission.ID, utils.ToBaseUnits(2)))

	// Tip is 1:1, no fee: creator 100-10-2, responder 9+2.
	assert.Equal(t, utils.ToBaseUnits(88), balanceOf(t, db, creator.ExternalUserID))
	assert.Equal(t, utils.ToBaseUnits(11), balanceOf(t, db, responder.ExternalUserID))
}

func TestBountyTipRejectsForeignSubmission(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)

	first := openBounty(t, bounties, creator.ExternalUserID, 10)
	second := openBounty(t, bounties, creator.ExternalUserID, 10)
	sub, err := bounties.Submit(first.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)
	_, err = bounties.Submit(second.ID, responder.ExternalUserID, "rest-2", "also good")
	require.NoError(t, err)
	_, err = bounties.Award(context.Background(), second.ID, creator.ExternalUserID, "rest-2")
	require.NoError(t, err)

	err = bounties.Tip(second.ID, creator.ExternalUserID, sub.ID, utils.ToBaseUnits(2))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBountyEscrowConservation(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	responder := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(20))
	bounty := openBounty(t, bounties, creator.ExternalUserID, 10)
	_, err := bounties.Submit(bounty.ID, responder.ExternalUserID, "rest-1", "tasty")
	require.NoError(t, err)
	_, err = bounties.Award(context.Background(), bounty.ID, creator.ExternalUserID, "rest-1")
	require.NoError(t, err)

	// 120 entered the system; exactly the 1 BOCA burn left it.
	total := balanceOf(t, db, creator.ExternalUserID) + balanceOf(t, db, responder.ExternalUserID)
	assert.Equal(t, utils.ToBaseUnits(119), total)
}

func TestBountyListFiltersByStatus(t *testing.T) {
	db, bounties, _ := newBountyStack(t)
	creator := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(100))
	openBounty(t, bounties, creator.ExternalUserID, 10)
	cancelled := openBounty(t, bounties, creator.ExternalUserID, 10)
	require.NoError(t, bounties.Cancel(cancelled.ID, creator.ExternalUserID))

	open, total, err := bounties.List(string(models.BountyStatusOpen), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, open, 1)
	assert.Equal(t, models.BountyStatusOpen, open[0].Status)

	all, total, err := bounties.List("", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)
}
