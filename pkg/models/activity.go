package models

// ActivityKind classifies a low-level "the user did something" signal
type ActivityKind string

const (
	ActivityKeyboard  ActivityKind = "keyboard"
	ActivityMouse     ActivityKind = "mouse"
	ActivityAPICall   ActivityKind = "api_call"
	ActivityMessage   ActivityKind = "message"
	ActivityHeartbeat ActivityKind = "heartbeat"
)
