package guardian

import "github.com/rmaitland/guardian/internal/metrics"

// MetricID identifies one engine counter.
type MetricID = metrics.MetricID

// MetricsSnapshot is a point-in-time copy of all engine counters,
// obtained from [Engine.MetricsSnapshot].
type MetricsSnapshot = metrics.Snapshot

const (
	MetricLoginSuccess             = metrics.LoginSuccess
	MetricLoginFailure             = metrics.LoginFailure
	MetricLoginLocked              = metrics.LoginLocked
	MetricRegisterSuccess          = metrics.RegisterSuccess
	MetricRegisterDuplicate        = metrics.RegisterDuplicate
	MetricRefreshSuccess           = metrics.RefreshSuccess
	MetricRefreshFailure           = metrics.RefreshFailure
	MetricValidateSuccess          = metrics.ValidateSuccess
	MetricValidateFailure          = metrics.ValidateFailure
	MetricPasswordChangeSuccess    = metrics.PasswordChangeSuccess
	MetricPasswordChangeInvalidOld = metrics.PasswordChangeInvalidOld
	MetricResetRequest             = metrics.ResetRequest
	MetricResetConfirmSuccess      = metrics.ResetConfirmSuccess
	MetricResetConfirmFailure      = metrics.ResetConfirmFailure
	MetricLogout                   = metrics.Logout
	MetricStaleTokenRejected       = metrics.StaleTokenRejected
)
