package stepchain

import (
	"github.com/felixgeelhaar/statekit"
)

// Phase is the coarse state of a chain. Which step is in flight is tracked
// separately by the chain's cursor.
type Phase string

const (
	PhaseNotStarted Phase = stateNotStarted
	PhaseInFlight   Phase = stateInFlight
	PhaseCompleted  Phase = stateCompleted
	PhaseFailed     Phase = stateFailed
)

// Untyped names for the machine builder.
const (
	stateNotStarted = "not_started"
	stateInFlight   = "in_flight"
	stateCompleted  = "completed"
	stateFailed     = "failed"
)

// Events for the phase machine.
const (
	EventStart   = "START"
	EventFinish  = "FINISH"
	EventFail    = "FAIL"
	EventAdvance = "ADVANCE"
)

// machineContext is unused by the transitions themselves; the chain keeps its
// cursor outside the machine.
type machineContext struct{}

// buildPhaseMachine constructs the chain lifecycle:
//
//	not_started --START--> in_flight --FINISH--> completed
//	                       in_flight --FAIL----> failed
//
// Terminal phases absorb ADVANCE so a late callback is a no-op.
func buildPhaseMachine() (*statekit.Interpreter[machineContext], error) {
	machine, err := statekit.NewMachine[machineContext]("stepchain").
		WithInitial(stateNotStarted).
		WithContext(machineContext{}).
		State(stateNotStarted).
		On(EventStart).Target(stateInFlight).Done().
		State(stateInFlight).
		On(EventFinish).Target(stateCompleted).
		On(EventFail).Target(stateFailed).Done().
		State(stateCompleted).
		On(EventAdvance).Target(stateCompleted).Done().
		State(stateFailed).
		On(EventAdvance).Target(stateFailed).Done().
		Build()
	if err != nil {
		return nil, err
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return interp, nil
}
