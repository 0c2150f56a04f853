package errors

var (
	ErrWalletNotFound = &DomainError{
		Code:      "WALLET_NOT_FOUND",
		Message:   "wallet not found",
		MessageSw: "pochi haipatikani",
	}
	ErrInsufficientFunds = &DomainError{
		Code:      "INSUFFICIENT_FUNDS",
		Message:   "insufficient wallet balance",
		MessageSw: "salio la pochi halitoshi",
	}
	ErrInsufficientEscrow = &DomainError{
		Code:      "INSUFFICIENT_ESCROW",
		Message:   "insufficient escrow balance",
		MessageSw: "salio la dhamana halitoshi",
	}
	ErrDailyWithdrawLimitExceeded = &DomainError{
		Code:      "DAILY_WITHDRAW_LIMIT_EXCEEDED",
		Message:   "daily withdrawal limit exceeded",
		MessageSw: "kikomo cha kutoa pesa kwa siku kimezidiwa",
	}
	ErrAmountExceedsTransactionLimit = &DomainError{
		Code:      "AMOUNT_EXCEEDS_TRANSACTION_LIMIT",
		Message:   "amount exceeds the single transaction limit",
		MessageSw: "kiasi kinazidi kikomo cha muamala mmoja",
	}
	ErrPinRequired = &DomainError{
		Code:      "PIN_REQUIRED",
		Message:   "PIN verification required for this amount",
		MessageSw: "uthibitisho wa PIN unahitajika kwa kiasi hiki",
	}
	ErrInvalidPin = &DomainError{
		Code:      "INVALID_PIN",
		Message:   "invalid PIN",
		MessageSw: "PIN si sahihi",
	}
	ErrEscrowAlreadyExists = &DomainError{
		Code:      "ESCROW_ALREADY_EXISTS",
		Message:   "an escrow already exists for this order",
		MessageSw: "dhamana tayari ipo kwa oda hii",
	}
	ErrEscrowNotHeld = &DomainError{
		Code:      "ESCROW_NOT_HELD",
		Message:   "escrow is not in HELD state",
		MessageSw: "dhamana haiko katika hali ya kushikiliwa",
	}
	ErrEscrowNotFound = &DomainError{
		Code:      "ESCROW_NOT_FOUND",
		Message:   "escrow not found",
		MessageSw: "dhamana haipatikani",
	}
	ErrLoanNotFound = &DomainError{
		Code:      "LOAN_NOT_FOUND",
		Message:   "loan not found",
		MessageSw: "mkopo haupatikani",
	}
	ErrLoanNotActive = &DomainError{
		Code:      "LOAN_NOT_ACTIVE",
		Message:   "loan is not active",
		MessageSw: "mkopo hauko hai",
	}
	ErrInvalidAmount = &DomainError{
		Code:      "INVALID_AMOUNT",
		Message:   "amount must be positive",
		MessageSw: "kiasi lazima kiwe chanya",
	}
	ErrContention = &DomainError{
		Code:      "CONTENTION",
		Message:   "operation aborted due to contention, retry with the same idempotency key",
		MessageSw: "operesheni imesitishwa kwa msongamano, jaribu tena na ufunguo uleule",
	}
	ErrInternalStorage = &DomainError{
		Code:      "INTERNAL_STORAGE_ERROR",
		Message:   "internal storage error",
		MessageSw: "hitilafu ya ndani ya hifadhi",
	}
)
