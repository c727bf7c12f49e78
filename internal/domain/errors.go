package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMarketNotRegistered = errors.New("market not registered")
	ErrMarketRegistered    = errors.New("market already registered")
	ErrZeroAmount          = errors.New("amount must be positive")
	ErrAlreadyDeposited    = errors.New("position already holds a different token kind")
	ErrSameTokenPair       = errors.New("source and destination token kinds are identical")
	ErrPrivilegeDenied     = errors.New("caller is not allowed to register markets")
	ErrInvalidKind         = errors.New("invalid token kind")
	ErrLockHeld            = errors.New("lock already held")
)
