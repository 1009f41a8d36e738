package trader

import "errors"

// Terminal trade failures. Each maps to exactly one activity log entry
// and one API error response.
var (
	// ErrInsufficientBalance is returned when a buy exceeds the wallet's
	// cached SOL balance.
	ErrInsufficientBalance = errors.New("trader: insufficient balance")

	// ErrNoTokenAccount is returned when a sell targets a token the
	// wallet has never held.
	ErrNoTokenAccount = errors.New("trader: no token account")

	// ErrZeroBalance is returned when a sell targets a token account
	// with nothing in it.
	ErrZeroBalance = errors.New("trader: token balance is zero")

	// ErrSubmissionFailed is returned when a signed transaction could
	// not be submitted or did not confirm.
	ErrSubmissionFailed = errors.New("trader: transaction submission failed")
)
