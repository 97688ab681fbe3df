package models

// SystemdServiceStatus contains the status information for a systemd unit.
type SystemdServiceStatus struct {
	Service string `json:"service" example:"edgelatency.service" doc:"Unit name"`
	Status  string `json:"status" example:"active" doc:"Active state (active, inactive, failed, etc.)"`
}

type SystemdServiceStatusResponse struct {
	Body SystemdServiceStatus
}

// SystemdServiceAction contains the result of a unit action.
type SystemdServiceAction struct {
	Service string `json:"service" example:"edgelatency.service" doc:"Unit name"`
	Action  string `json:"action" example:"restart" doc:"Action performed"`
	Success bool   `json:"success" example:"true" doc:"Whether the job completed"`
}

type SystemdServiceActionResponse struct {
	Body SystemdServiceAction
}
