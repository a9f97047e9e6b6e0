package types

import (
	"time"

	"github.com/GriffinCanCode/robotdriver/internal/driver"
)

// ReadyResponse answers GET /v1/robot/ready.
type ReadyResponse struct {
	Ready  bool   `json:"ready"`
	Prefix string `json:"prefix"`
}

// StateResponse is a full robot snapshot.
type StateResponse struct {
	Prefix         string    `json:"prefix"`
	Positions      []float64 `json:"positions"`
	LimitsMin      []float64 `json:"limits_min"`
	LimitsMax      []float64 `json:"limits_max"`
	ReferenceFrame []float64 `json:"reference_frame"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewStateResponse converts a driver snapshot.
func NewStateResponse(prefix string, s driver.DriverState, now time.Time) StateResponse {
	frame := s.ReferenceFrame.Components()
	return StateResponse{
		Prefix:         prefix,
		Positions:      s.Positions.Float64s(),
		LimitsMin:      s.Limits.Min.Float64s(),
		LimitsMax:      s.Limits.Max.Float64s(),
		ReferenceFrame: frame[:],
		Timestamp:      now,
	}
}

// TargetRequest is the body of POST /v1/robot/target.
type TargetRequest struct {
	Positions []float64 `json:"positions" binding:"required"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// Stream message types.
const (
	StreamState    = "state"
	StreamNotReady = "not_ready"
	StreamPong     = "pong"
	StreamError    = "error"
)

// StreamMessage is pushed over the state websocket.
type StreamMessage struct {
	Type     string         `json:"type"`
	ClientID string         `json:"client_id,omitempty"`
	State    *StateResponse `json:"state,omitempty"`
	Missing  []string       `json:"missing,omitempty"`
	Message  string         `json:"message,omitempty"`
}
