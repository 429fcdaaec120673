package services

import "errors"

// Engine errors. Handlers translate these to HTTP status codes; the engine
// itself never speaks HTTP.
var (
	ErrValidation          = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("caller lacks authority over this entity")
	ErrInvalidState        = errors.New("operation not valid for current state")
	ErrConflict            = errors.New("duplicate submission")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyAwarded      = errors.New("bounty already awarded")
	ErrSettlementFailed    = errors.New("settlement failed")
)
