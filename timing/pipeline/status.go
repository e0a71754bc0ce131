// Package pipeline implements the cycle-accurate five-stage in-order
// pipeline controller: stage sequencing, hazard detection, forwarding,
// cache miss timing, and exception redirect.
package pipeline

// StageStatus tags how a pipeline stage should be displayed in the per-cycle
// dump. It is a presentation concept, not program semantics, so it lives on
// the latch rather than on the instruction descriptor.
type StageStatus int

// Stage display statuses.
const (
	// StageIdle marks a stage that has never held real work.
	StageIdle StageStatus = iota
	// StageNormal marks real work, including HALT and illegal instructions.
	StageNormal
	// StageBubble marks a stall-injected nop.
	StageBubble
	// StageSquashed marks a flushed instruction.
	StageSquashed
	// StageSpeculative marks an instruction fetched past an unresolved
	// branch.
	StageSpeculative
)

func (s StageStatus) String() string {
	switch s {
	case StageIdle:
		return "IDLE"
	case StageNormal:
		return "NORMAL"
	case StageBubble:
		return "BUBBLE"
	case StageSquashed:
		return "SQUASHED"
	case StageSpeculative:
		return "SPECULATIVE"
	}
	return "UNKNOWN"
}

// Status is the result of running the simulator.
type Status int

// Run statuses.
const (
	// StatusSuccess means the requested number of cycles completed.
	StatusSuccess Status = iota
	// StatusHalt means the halt marker retired at WB.
	StatusHalt
	// StatusError means a dump file could not be written.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusHalt:
		return "HALT"
	case StatusError:
		return "ERROR"
	}
	return "UNKNOWN"
}
