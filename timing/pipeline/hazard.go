package pipeline

import "github.com/sarchlab/rv5sim/insts"

// writesTo reports whether producer writes register reg. The zero register
// and pipeline bubbles never produce values.
func writesTo(producer insts.Instruction, reg uint8) bool {
	return producer.WritesRd && !producer.IsNop && producer.Rd != 0 && producer.Rd == reg
}

// hazards is the stall vector computed from the pre-tick latch contents.
type hazards struct {
	// stall holds IF and ID and injects a bubble into EX.
	stall bool
	// loadUse is set when stall was triggered by a load-use dependency; it
	// drives the load-use stall counter.
	loadUse bool
}

// detectHazards inspects the pre-tick ID, EX, and MEM latch contents and
// decides whether the front of the pipeline must stall this cycle.
//
//   - Load-use: EX holds a load whose destination feeds ID's rs1, or its rs2
//     when ID is not a store. A load feeding only a store's data operand does
//     not stall; the value is forwarded to the store in MEM.
//   - Arith-branch: EX holds a non-memory producer feeding a branch or JALR
//     in ID, which needs its operands one stage earlier than forwarding can
//     deliver them.
//   - Load-branch: MEM holds a load feeding a branch or JALR in ID.
func detectHazards(id, ex, mem insts.Instruction) hazards {
	var h hazards

	if ex.ReadsMem && ex.WritesRd && !ex.IsNop && ex.Rd != 0 {
		hazardRs1 := id.ReadsRs1 && ex.Rd == id.Rs1
		hazardRs2 := id.ReadsRs2 && ex.Rd == id.Rs2
		onlyStoreData := !hazardRs1 && hazardRs2 && id.WritesMem
		if (hazardRs1 || hazardRs2) && !onlyStoreData {
			h.stall = true
			h.loadUse = true
		}
	}

	if id.IsBranchOrJALR() {
		if !ex.ReadsMem &&
			((id.ReadsRs1 && writesTo(ex, id.Rs1)) || (id.ReadsRs2 && writesTo(ex, id.Rs2))) {
			h.stall = true
		}
		if mem.ReadsMem &&
			((id.ReadsRs1 && writesTo(mem, id.Rs1)) || (id.ReadsRs2 && writesTo(mem, id.Rs2))) {
			h.stall = true
		}
	}

	return h
}

// forwardedValue selects the value a producer makes available: the memory
// result for loads, the arithmetic result otherwise.
func forwardedValue(producer insts.Instruction) uint64 {
	if producer.ReadsMem {
		return producer.MemResult
	}
	return producer.ArithResult
}

// forwardOperands replaces the consumer's source operand values with the
// freshest matching producer, in priority order mem, wb, done. Only the
// local copy is updated; latches are never mutated.
func forwardOperands(consumer, mem, wb, done insts.Instruction) insts.Instruction {
	if consumer.ReadsRs1 {
		switch {
		case writesTo(mem, consumer.Rs1):
			consumer.Op1Val = forwardedValue(mem)
		case writesTo(wb, consumer.Rs1):
			consumer.Op1Val = forwardedValue(wb)
		case writesTo(done, consumer.Rs1):
			consumer.Op1Val = forwardedValue(done)
		}
	}
	if consumer.ReadsRs2 {
		switch {
		case writesTo(mem, consumer.Rs2):
			consumer.Op2Val = forwardedValue(mem)
		case writesTo(wb, consumer.Rs2):
			consumer.Op2Val = forwardedValue(wb)
		case writesTo(done, consumer.Rs2):
			consumer.Op2Val = forwardedValue(done)
		}
	}
	return consumer
}

// forwardStoreData forwards a retiring producer's value into a store's data
// operand as the store enters MEM. This is the path that lets a load feed
// the data of the store immediately behind it without a stall: when the load
// misses in the D-cache its result is not available as the store passes EX,
// but it is in WB by the time the store performs its access.
func forwardStoreData(store, wb insts.Instruction) insts.Instruction {
	if store.ReadsRs2 && writesTo(wb, store.Rs2) {
		store.Op2Val = forwardedValue(wb)
	}
	return store
}
