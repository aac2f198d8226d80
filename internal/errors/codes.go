package errors

// Shared sentinels. Services may add their own with the constructors above.
var (
	ErrInvalidAmount = Validation("INVALID_AMOUNT", "invalid amount")

	ErrUserNotFound        = NotFound("USER_NOT_FOUND", "user not found")
	ErrWalletNotFound      = NotFound("WALLET_NOT_FOUND", "wallet not found")
	ErrTransactionNotFound = NotFound("TRANSACTION_NOT_FOUND", "transaction not found")
	ErrInvestmentNotFound  = NotFound("INVESTMENT_NOT_FOUND", "investment not found")

	ErrInvalidTransition = Conflict("INVALID_STATUS_TRANSITION", "transaction is not pending")

	ErrInsufficientBalance = New(KindInsufficientFunds, "INSUFFICIENT_BALANCE", "insufficient available balance")

	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	ErrInvalidToken       = New(KindUnauthorized, "INVALID_TOKEN", "invalid token")
	ErrSessionExpired     = New(KindUnauthorized, "SESSION_EXPIRED", "session expired")
	ErrForbidden          = New(KindForbidden, "FORBIDDEN", "insufficient permissions")

	ErrOtpExpired      = New(KindExpiredOtp, "OTP_EXPIRED", "OTP has expired or was never issued")
	ErrOtpMismatch     = New(KindOtpMismatch, "OTP_INVALID", "invalid OTP")
	ErrOtpDataMismatch = New(KindOtpMismatch, "OTP_DATA_MISMATCH",
		"OTP data does not match the current request")
)
