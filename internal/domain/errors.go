package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidConfig         = errors.New("invalid group configuration")
	ErrVaultProvisionFailed  = errors.New("vault provisioning failed")
	ErrNotAMember            = errors.New("not a member of this group")
	ErrDuplicateContribution = errors.New("already contributed this cycle")
	ErrAmountMismatch        = errors.New("amount does not match the contribution amount")
	ErrCycleIncomplete       = errors.New("cycle contributions incomplete")
	ErrInsufficientInsurance = errors.New("insurance pool cannot cover the full claim")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrGroupClosed           = errors.New("group no longer accepts this operation")
	ErrNoDebtRecorded        = errors.New("no default shortfall recorded for member")
	ErrLockHeld              = errors.New("lock already held")
)
