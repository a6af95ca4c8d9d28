package domain

import "github.com/pkg/errors"

var (
	// ErrUnknownCurrency is returned when a currency code is not registered.
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrMissingRate is returned when a registered currency has never been fetched.
	ErrMissingRate = errors.New("no exchange rate available")
	// ErrInsufficientFunds is returned when a debit exceeds the wallet balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAuthenticationFailure covers both unknown user and wrong password.
	ErrAuthenticationFailure = errors.New("authentication failed")
	// ErrFetchFailure marks a failed rate refresh cycle. Never surfaced to trade callers.
	ErrFetchFailure = errors.New("rate fetch failed")

	ErrUserExists   = errors.New("username already taken")
	ErrUserNotFound = errors.New("user not found")
	ErrNotLoggedIn  = errors.New("not logged in")
)
