package services

import (
	"errors"
	"fmt"

	"content-reward-system/models"

	"gorm.io/gorm"
)

// LedgerService owns every mutation of users.balance_base. All writes are
// atomic increments executed in the database — never a read-compute-write
// from application memory, which loses updates under concurrent credits.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Credit adds amountBase to the user's balance atomically.
func (s *LedgerService) Credit(tx *gorm.DB, externalUserID string, amountBase int64) error {
	if tx == nil {
		tx = s.DB
	}
	if amountBase <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amountBase)
	}
	res := tx.Model(&models.User{}).
		Where("external_user_id = ?", externalUserID).
		Update("balance_base", gorm.Expr("balance_base + ?", amountBase))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Debit subtracts amountBase, guarded by a conditional update so the balance
// check and the write are one statement. Zero rows affected means either the
// user is missing or the balance was short; the caller gets the right error.
func (s *LedgerService) Debit(tx *gorm.DB, externalUserID string, amountBase int64) error {
	if tx == nil {
		tx = s.DB
	}
	if amountBase <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amountBase)
	}
	res := tx.Model(&models.User{}).
		Where("external_user_id = ? AND balance_base >= ?", externalUserID, amountBase).
		Update("balance_base", gorm.Expr("balance_base - ?", amountBase))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetUser(tx, externalUserID); err != nil {
			return err
		}
		return ErrInsufficientBalance
	}
	return nil
}

// Transfer moves amountBase from one user to another inside one transaction.
// Used by bounty tips; there is no fee on a transfer.
func (s *LedgerService) Transfer(fromID, toID string, amountBase int64) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Debit(tx, fromID, amountBase); err != nil {
			return err
		}
		return s.Credit(tx, toID, amountBase)
	})
}

// GetUser fetches a user by external id.
func (s *LedgerService) GetUser(tx *gorm.DB, externalUserID string) (*models.User, error) {
	if tx == nil {
		tx = s.DB
	}
	var user models.User
	if err := tx.Where("external_user_id = ?", externalUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Balance returns the current spendable balance in base units.
func (s *LedgerService) Balance(externalUserID string) (int64, error) {
	user, err := s.GetUser(nil, externalUserID)
	if err != nil {
		return 0, err
	}
	return user.BalanceBase, nil
}
