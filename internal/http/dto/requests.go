package dto

type IssueTokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type TargetRequest struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Handles    map[string]string `json:"handles,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type PhaseRequest struct {
	Name            string `json:"name"`
	Platform        string `json:"platform"`
	ActionKind      string `json:"action_kind"`
	Template        string `json:"template,omitempty"`
	Condition       string `json:"condition,omitempty"`
	DelayMinSeconds int    `json:"delay_min_seconds,omitempty"`
	DelayMaxSeconds int    `json:"delay_max_seconds,omitempty"`
}

type ScheduleRequest struct {
	Weekdays  []int  `json:"weekdays,omitempty"` // 0 = Sunday
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`
	Timezone  string `json:"timezone,omitempty"`
}

type DiscoveryRequest struct {
	Query      string `json:"query,omitempty"`
	Source     string `json:"source,omitempty"`
	MaxTargets int    `json:"max_targets,omitempty"`
}

type CreateCampaignRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Discovery   DiscoveryRequest `json:"discovery"`
	Phases      []PhaseRequest   `json:"phases"`
	Targets     []TargetRequest  `json:"targets"`
	Schedule    *ScheduleRequest `json:"schedule,omitempty"`
}

type FailCampaignRequest struct {
	Reason string `json:"reason"`
}

type ActionResultRequest struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type RecordAdmissionRequest struct {
	Kind    string         `json:"kind"`
	Target  string         `json:"target"`
	Success bool           `json:"success"`
	Details map[string]any `json:"details,omitempty"`
}
