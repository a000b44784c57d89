package accounts

import "time"

// AccountState is the derived lifecycle state of an account. It is computed
// from the persisted flags, not stored: activation status is the `activated`
// flag, reset-pending is the presence of an unexpired reset key.
type AccountState = string

const (
	// AccountStatePending awaits activation-key redemption
	AccountStatePending AccountState = "pending"
	// AccountStateActive is a fully usable account
	AccountStateActive AccountState = "active"
	// AccountStateResetPending is active with an unexpired reset key issued
	AccountStateResetPending AccountState = "reset-pending"
	// AccountStateArchived is soft-deleted through the administrative path
	AccountStateArchived AccountState = "archived"
)

// CurrentState derives the lifecycle state at the given instant. The reset
// window comes from the config; a reset key past the window is inert and the
// account reads as plain active again without any cleanup write.
func CurrentState(account *Account, cfg Config, now time.Time) AccountState {
	if account == nil {
		return ""
	}

	if account.DeletedAt != nil {
		return AccountStateArchived
	}

	if !account.Activated {
		return AccountStatePending
	}

	if HasPendingReset(account, cfg, now) {
		return AccountStateResetPending
	}

	return AccountStateActive
}

// HasPendingReset reports whether the account holds a redeemable reset key.
func HasPendingReset(account *Account, cfg Config, now time.Time) bool {
	if account == nil || account.ResetKey == "" || account.ResetDate == nil {
		return false
	}

	window, err := time.ParseDuration(cfg.GetResetKeyValidity())
	if err != nil {
		return false
	}

	return now.Sub(*account.ResetDate) <= window
}
