package domain

import "encoding/json"

// EngineState is the lifecycle state of the engine session.
type EngineState int

const (
	EngineIdle EngineState = iota
	EngineInitializing
	EngineReady
	EngineFailed
)

func (s EngineState) String() string {
	switch s {
	case EngineInitializing:
		return "initializing"
	case EngineReady:
		return "ready"
	case EngineFailed:
		return "failed"
	}
	return "idle"
}

func (s EngineState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
