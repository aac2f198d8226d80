package ledger

import apperrors "yieldtree/internal/errors"

var (
	ErrInvalidDirection   = apperrors.Validation("INVALID_DIRECTION", "direction must be credit or debit")
	ErrMissingSource      = apperrors.Validation("MISSING_INCOME_SOURCE", "income source is required")
	ErrInvalidStatus      = apperrors.Validation("INVALID_STATUS", "unsupported transaction status")
	ErrInvalidReservation = apperrors.Validation("INVALID_RESERVATION", "only pending debits can reserve funds")
)
