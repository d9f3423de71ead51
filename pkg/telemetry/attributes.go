package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute key names attached to coordinator command spans.
const (
	// World
	AttrWorldName   = "world.name"
	AttrWorldMode   = "world.mode"
	AttrShipsCount  = "world.ships_count"

	// Ship
	AttrShipID = "ship.id"

	// Simulator
	AttrSimClock       = "simulator.clock_seconds"
	AttrSimTimeStep    = "simulator.time_step_seconds"
	AttrSimStepsRun    = "simulator.steps_run"
	AttrSimProgressPct = "simulator.progress_percent"

	// Broker command
	AttrCommandKind = "command.kind"
	AttrCommandID   = "command.id"

	// Validation
	AttrValidationLevel  = "validation.level"
	AttrValidationErrors = "validation.errors"
	AttrValidationPassed = "validation.passed"
)

// WorldAttributes returns the attribute set identifying a world at a given
// ship count and running mode.
func WorldAttributes(name, mode string, shipsCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrWorldName, name),
		attribute.String(AttrWorldMode, mode),
		attribute.Int(AttrShipsCount, shipsCount),
	}
}

// SimulatorAttributes returns the attribute set describing a simulator's
// progress at the moment a span is recorded.
func SimulatorAttributes(clockSeconds, timeStepSeconds float64, stepsRun int, progressPercent float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Float64(AttrSimClock, clockSeconds),
		attribute.Float64(AttrSimTimeStep, timeStepSeconds),
		attribute.Int(AttrSimStepsRun, stepsRun),
		attribute.Float64(AttrSimProgressPct, progressPercent),
	}
}

// CommandAttributes returns the attribute set identifying an inbound broker
// command.
func CommandAttributes(kind, id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCommandKind, kind),
		attribute.String(AttrCommandID, id),
	}
}

// ValidationAttributes returns the attribute set describing a validation pass.
func ValidationAttributes(level string, errorsCount int, passed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrValidationLevel, level),
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Bool(AttrValidationPassed, passed),
	}
}
