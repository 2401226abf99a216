package ir

// Version constants for the event schema and engine.
const (
	// IRVersion is the event schema version recorded with stored renders.
	IRVersion = "1"

	// EngineVersion is the stochos engine version.
	EngineVersion = "0.1.0"
)
