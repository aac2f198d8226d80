package withdrawal

import apperrors "yieldtree/internal/errors"

var (
	ErrMinimumWithdrawal  = apperrors.Validation("MINIMUM_WITHDRAWAL", "minimum withdrawal amount is $10")
	ErrAmountStep         = apperrors.Validation("AMOUNT_NOT_MULTIPLE_OF_10", "amount must be in multiples of $10")
	ErrChainRequired      = apperrors.Validation("CHAIN_REQUIRED", "blockchain selection is required")
	ErrAddressRequired    = apperrors.Validation("ADDRESS_REQUIRED", "withdrawal address is required")
	ErrOTPRequired        = apperrors.Validation("OTP_REQUIRED", "OTP code is required")
	ErrInvestmentLocked   = apperrors.Validation("INVESTMENT_LOCKED", "investment is still in its lock period")
	ErrInvestmentInactive = apperrors.Conflict("INVESTMENT_NOT_ACTIVE", "investment is not active")
	ErrPendingWithdrawal  = apperrors.Conflict("WITHDRAWAL_ALREADY_PENDING", "a withdrawal for this investment is already pending")
	ErrWithdrawalNotFound = apperrors.NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal transaction not found")
)
