package ir

// Version constants for persisted builds and the engine.
const (
	// IRVersion is the schema version of serialized graphs.
	IRVersion = "1"

	// EngineVersion is the automata engine version.
	EngineVersion = "0.1.0"
)
