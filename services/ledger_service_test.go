package services

import (
	"testing"

	"content-reward-system/models"
	"content-reward-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCreditAndDebit(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	user := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(10))

	require.NoError(t, ledger.Credit(nil, user.ExternalUserID, utils.ToBaseUnits(2.5)))
	require.NoError(t, ledger.Debit(nil, user.ExternalUserID, utils.ToBaseUnits(5)))

	balance, err := ledger.Balance(user.ExternalUserID)
	require.NoError(t, err)
	assert.Equal(t, utils.ToBaseUnits(7.5), balance)
}

func TestLedgerDebitInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	user := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(3))

	err := ledger.Debit(nil, user.ExternalUserID, utils.ToBaseUnits(3.5))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Balance untouched after the failed debit.
	balance, err := ledger.Balance(user.ExternalUserID)
	require.NoError(t, err)
	assert.Equal(t, utils.ToBaseUnits(3), balance)
}

func TestLedgerUnknownUser(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)

	assert.ErrorIs(t, ledger.Credit(nil, "nobody", 100), ErrNotFound)
	assert.ErrorIs(t, ledger.Debit(nil, "nobody", 100), ErrNotFound)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	user := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 100)

	assert.Error(t, ledger.Credit(nil, user.ExternalUserID, 0))
	assert.Error(t, ledger.Debit(nil, user.ExternalUserID, -5))
}

func TestLedgerTransfer(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	alice := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(10))
	bob := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)

	require.NoError(t, ledger.Transfer(alice.ExternalUserID, bob.ExternalUserID, utils.ToBaseUnits(4)))

	assert.Equal(t, utils.ToBaseUnits(6), balanceOf(t, db, alice.ExternalUserID))
	assert.Equal(t, utils.ToBaseUnits(4), balanceOf(t, db, bob.ExternalUserID))
}

func TestLedgerTransferRollsBackOnShortBalance(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	alice := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, utils.ToBaseUnits(1))
	bob := createUser(t, db, models.AccountTierEmailBasic, models.TrustTierNew, 0)

	err := ledger.Transfer(alice.ExternalUserID, bob.ExternalUserID, utils.ToBaseUnits(2))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, utils.ToBaseUnits(1), balanceOf(t, db, alice.ExternalUserID))
	assert.Equal(t, int64(0), balanceOf(t, db, bob.ExternalUserID))
}
