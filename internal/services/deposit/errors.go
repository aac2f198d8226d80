package deposit

import apperrors "yieldtree/internal/errors"

var (
	ErrMinimumDeposit  = apperrors.Validation("MINIMUM_DEPOSIT", "minimum deposit amount is $100")
	ErrAmountStep      = apperrors.Validation("AMOUNT_NOT_MULTIPLE_OF_10", "amount must be in multiples of $10")
	ErrChainRequired   = apperrors.Validation("CHAIN_REQUIRED", "blockchain selection is required")
	ErrOTPRequired     = apperrors.Validation("OTP_REQUIRED", "OTP code is required")
	ErrDepositNotFound = apperrors.NotFound("DEPOSIT_NOT_FOUND", "deposit transaction not found")
)
