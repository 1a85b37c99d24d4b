package prefs

// Private store keys (main process only).
const (
	KeyIsLocking           = "isLocking"
	KeyHasUsedNFC          = "hasUsedNFC"
	KeyTimerEndDate        = "timerEndDate"
	KeySavedProfiles       = "savedProfiles"
	KeyCurrentProfileID    = "currentProfileId"
	KeySavedSchedules      = "savedSchedules"
	KeyWasLockedBySchedule = "wasLockedBySchedule"
	KeyAuthorizationStatus = "authorizationStatus"
)

// Shared store keys (app group, read and written by extensions too).
const (
	KeySnoozesUsedToday    = "snoozesUsedToday"
	KeyMaxSnoozesPerDay    = "maxSnoozesPerDay"
	KeySnoozeDuration      = "snoozeDuration"
	KeyLastSnoozeReset     = "lastSnoozeResetDate"
	KeySnoozeEndTime       = "snoozeEndTime"
	KeySnoozeRequested     = "snoozeRequested"
	KeySnoozeRequestTime   = "snoozeRequestTime"
	KeySnoozeRequestDenied = "snoozeRequestDenied"
	KeyActiveProfile       = "currentProfile"
	KeyShieldRules         = "shieldRules"
)

// Cross-process signal names.
const (
	SignalSnoozeRequested = "com.locked.app.snoozeRequested"
	SignalSnoozeEnded     = "com.locked.app.snoozeEnded"
)
