package events

// Event type constants for kelindar/event.
const (
	TypeActuation uint32 = iota + 1
	TypeRecipientChanged
	TypeSendFailed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ActuationEvent is published by the actuation task after every processed edge.
type ActuationEvent struct {
	Seq           uint64  `json:"seq" doc:"Number of processed events since start"`
	On            bool    `json:"on" doc:"Actuator state after the toggle"`
	ElapsedCycles uint32  `json:"elapsed_cycles" doc:"Cycles between edge and actuation"`
	ElapsedNs     float64 `json:"elapsed_ns" doc:"Elapsed time in nanoseconds"`
	Transport     string  `json:"transport" doc:"Active transport name"`
	Sent          bool    `json:"sent" doc:"Whether the transport accepted the message"`
}

// Type returns the event type identifier for ActuationEvent.
func (e ActuationEvent) Type() uint32 { return TypeActuation }

// RecipientChangedEvent is published when a transport's current recipient changes.
type RecipientChangedEvent struct {
	Transport   string `json:"transport"`
	State       string `json:"state" example:"has_client" doc:"Transport state after the change"`
	RecipientID uint32 `json:"recipient_id" doc:"Active recipient, 0 when none"`
	Reason      string `json:"reason,omitempty" example:"superseded"`
}

// Type returns the event type identifier for RecipientChangedEvent.
func (e RecipientChangedEvent) Type() uint32 { return TypeRecipientChanged }

// Active reports whether the transport has a recipient after this change.
func (e RecipientChangedEvent) Active() bool { return e.RecipientID != 0 }

// SendFailedEvent is published when a transport rejects a telemetry message.
type SendFailedEvent struct {
	Transport string `json:"transport"`
	Reason    string `json:"reason" example:"no_recipient"`
	Error     string `json:"error"`
}

// Type returns the event type identifier for SendFailedEvent.
func (e SendFailedEvent) Type() uint32 { return TypeSendFailed }
