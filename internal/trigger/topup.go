package trigger

// ComputeTopupAmount implements spec.md §4.4's target-balance calculation
// for auto-topup: transferAmount = min(targetBalance - currentBalance,
// configuredMax), clamped to >= 0 and to the source's available balance.
// Shared by internal/executor so the formula lives in one place.
func ComputeTopupAmount(targetBalanceMinor, currentTargetMinor, configuredMaxMinor, sourceAvailableMinor int64) int64 {
	amount := targetBalanceMinor - currentTargetMinor
	if amount > configuredMaxMinor {
		amount = configuredMaxMinor
	}
	if amount < 0 {
		amount = 0
	}
	if amount > sourceAvailableMinor {
		amount = sourceAvailableMinor
	}
	return amount
}
