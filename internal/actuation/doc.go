// Package actuation implements the interrupt-to-actuation latency pipeline.
//
// # Data flow
//
//	EdgeSource / PeriodicTrigger
//	        │ OnEdge: store cycle timestamp, Signal
//	        ▼
//	Notifier (single slot, coalescing)
//	        │
//	        ▼
//	Task: WAIT → PROCESS → WAIT
//	        │ elapsed = now - timestamp, toggle State, SetColor
//	        ▼
//	Sender.Send("LED:ON\n")
//
// # Coalescing
//
// The Notifier holds at most one pending wake-up. Edges that arrive while a
// wake-up is already pending are folded into it, and the edge timestamp slot
// keeps only the latest value. A burst of edges faster than one PROCESS cycle
// therefore produces at least one processed event, not one per edge.
//
// # Ownership
//
// State is written only by the Task. Other components (transports answering
// read requests, the status API) receive the same *State and read it through
// IsOn, which is a single atomic load.
package actuation
