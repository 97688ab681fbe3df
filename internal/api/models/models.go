// Package models holds the request and response bodies of the HTTP API.
package models

// HealthData is the body of GET /api/health.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// VersionData mirrors version.Info.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"OS/architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// LastEvent describes the most recent actuation.
type LastEvent struct {
	Seq           uint64  `json:"seq" doc:"Event sequence number"`
	On            bool    `json:"on" doc:"State after the toggle"`
	ElapsedCycles uint32  `json:"elapsed_cycles" doc:"Edge-to-actuation latency in clock cycles"`
	ElapsedNs     float64 `json:"elapsed_ns" doc:"Edge-to-actuation latency in nanoseconds"`
	Sent          bool    `json:"sent" doc:"Whether the transport accepted the message"`
}

// ActuatorData is the pull-style state query.
type ActuatorData struct {
	On             bool       `json:"on" doc:"Actuator state"`
	StateText      string     `json:"state_text" example:"LED:ON" doc:"State as sent on the wire"`
	Transport      string     `json:"transport" example:"tcp" doc:"Active transport"`
	TransportState string     `json:"transport_state" example:"has_client" doc:"Transport link state"`
	RecipientID    uint32     `json:"recipient_id" doc:"Current recipient, 0 when none"`
	EdgesSignalled uint64     `json:"edges_signalled" doc:"Edges that woke the actuation task"`
	EdgesCoalesced uint64     `json:"edges_coalesced" doc:"Edges merged into a pending wake"`
	EdgeSource     string     `json:"edge_source,omitempty" example:"GPIO17" doc:"Input pin, empty when disabled"`
	Indicator      string     `json:"indicator" example:"usr_led" doc:"Indicator driver"`
	Last           *LastEvent `json:"last,omitempty" doc:"Most recent actuation, absent before the first"`
}

type ActuatorResponse struct {
	Body ActuatorData
}

// TriggerData is returned by POST /api/trigger.
type TriggerData struct {
	Accepted bool   `json:"accepted" example:"true"`
	Message  string `json:"message" example:"edge injected"`
}

type TriggerResponse struct {
	Body TriggerData
}

// LogsRequest filters the in-memory log buffer.
type LogsRequest struct {
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level"`
	Module string `query:"module" example:"tcp" doc:"Only entries from this module"`
	Limit  int    `query:"limit" minimum:"1" maximum:"500" default:"100" doc:"Newest entries to return"`
}

// LogEntry is one buffered log record.
type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-01T00:00:00.000Z"`
	Level      string         `json:"level" example:"INFO"`
	Module     string         `json:"module" example:"actuation"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries"`
	Count   int        `json:"count"`
}

type LogsResponse struct {
	Body LogsData
}
