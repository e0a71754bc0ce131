package pipeline

import "github.com/sarchlab/rv5sim/insts"

// Latch is one pipeline stage register: the instruction descriptor occupying
// the stage plus its display status.
type Latch struct {
	Inst   insts.Instruction
	Status StageStatus
}

// nopLatch returns a bubble latch with the given display status.
func nopLatch(status StageStatus) Latch {
	return Latch{Inst: insts.Nop(), Status: status}
}

// resultLatch derives the latch for a stage result, preserving IDLE and
// SQUASHED tags from the source latch and tagging bubbles and real work.
func resultLatch(result insts.Instruction, src Latch) Latch {
	switch {
	case src.Inst.IsNop && src.Status == StageIdle:
		return nopLatch(StageIdle)
	case src.Inst.IsNop && src.Status == StageSquashed:
		return nopLatch(StageSquashed)
	case result.IsNop:
		return Latch{Inst: result, Status: StageBubble}
	default:
		return Latch{Inst: result, Status: StageNormal}
	}
}
