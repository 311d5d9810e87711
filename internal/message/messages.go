package message

// Error kinds returned in the {error: kind, ...} envelope.
// These are stable contract strings; clients switch on them.
const (
	KindRateLimited            = "rate_limited"
	KindNotAdmitted            = "not_admitted"
	KindSalesPaused            = "sales_paused"
	KindPurchaseLimitExceeded  = "purchase_limit_exceeded"
	KindPerTierLimitExceeded   = "per_tier_limit_exceeded"
	KindInsufficientInventory  = "insufficient_inventory"
	KindDoubleHold             = "double_hold"
	KindReservationExpired     = "reservation_expired_or_invalid"
	KindSessionStateMismatch   = "session_state_mismatch"
	KindInvalidToken           = "invalid_token"
	KindNotFound               = "not_found"
	KindValidationError        = "validation_error"
	KindTicketAlreadyUsed      = "already_used"
	KindTicketInvalid          = "invalid_ticket"
	KindInternalError          = "internal_error"
)
