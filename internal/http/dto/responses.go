package dto

type TokenResponse struct {
	Token string `json:"token"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"` // invariant_violation, validation, storage
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// NextActionResponse carries the action to run, or nothing with the reason the campaign is idle.
type NextActionResponse struct {
	Action any    `json:"action,omitempty"`
	Idle   bool   `json:"idle"`
	Status string `json:"campaign_status"`
}

type DelayResponse struct {
	Platform     string `json:"platform"`
	Kind         string `json:"kind"`
	DelaySeconds int    `json:"delay_seconds"`
}
