package pipeline

import (
	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/timing/cache"
)

// ExceptionHandlerPC is the fixed address execution redirects to after an
// illegal instruction or a memory fault.
const ExceptionHandlerPC uint64 = 0x8000

// Simulator is the per-stage functional model the pipeline drives. The
// pipeline owns all timing; each callback performs the architectural work of
// one stage on the descriptor it is given and returns the updated copy.
type Simulator interface {
	SimIF(pc uint64) insts.Instruction
	SimID(inst insts.Instruction) insts.Instruction
	SimNextPCResolution(inst insts.Instruction) insts.Instruction
	SimEX(inst insts.Instruction) insts.Instruction
	SimMEM(inst insts.Instruction) insts.Instruction
	SimWB(inst insts.Instruction) insts.Instruction
}

// Stats holds the counters reported at the end of a run.
type Stats struct {
	// Committed is the number of retired instructions, counting each dynamic
	// retirement.
	Committed uint64
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// ICacheHits and ICacheMisses count instruction cache accesses.
	ICacheHits   uint64
	ICacheMisses uint64
	// DCacheHits and DCacheMisses count data cache accesses.
	DCacheHits   uint64
	DCacheMisses uint64
	// LoadUseStalls counts cycles stalled on a load-use dependency.
	LoadUseStalls uint64
}

// CPI returns the cycles per committed instruction.
func (s Stats) CPI() float64 {
	if s.Committed == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Committed)
}

// Option is a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithTracer attaches a per-cycle pipe state tracer.
func WithTracer(t *Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithEntryPC sets the initial fetch address.
func WithEntryPC(pc uint64) Option {
	return func(p *Pipeline) {
		p.pc = pc
	}
}

// Pipeline is the five-stage in-order pipeline controller. It owns the stage
// latches, the program counter, the split caches, and the miss countdowns;
// the functional simulator and its memory are borrowed collaborators.
type Pipeline struct {
	sim    Simulator
	icache *cache.Cache
	dcache *cache.Cache
	tracer *Tracer

	// Stage latches. doneLatch holds the last retired instruction for one
	// extra cycle to extend forwarding reach by one slot.
	ifLatch   Latch
	idLatch   Latch
	exLatch   Latch
	memLatch  Latch
	wbLatch   Latch
	doneLatch Latch

	pc         uint64
	cycleCount uint64

	// I-cache miss countdown. While it runs, IF holds a placeholder at the
	// fetch address.
	iMissRemaining uint64
	iMissActive    bool

	// D-cache miss countdown. latchedMemInst is the in-flight access MEM
	// replays until the countdown expires.
	dMissRemaining uint64
	dMissActive    bool
	latchedMemInst insts.Instruction

	// Exception redirect, applied one cycle after it is scheduled so the
	// faulting instruction is displayed in its stage first.
	pendingFlush   bool
	pendingFlushPC uint64

	committed     uint64
	loadUseStalls uint64

	halted bool
}

// NewPipeline creates a pipeline over the given functional simulator and
// split caches. All latches start idle and fetch starts at address 0 unless
// WithEntryPC overrides it.
func NewPipeline(sim Simulator, icache, dcache *cache.Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		sim:       sim,
		icache:    icache,
		dcache:    dcache,
		ifLatch:   nopLatch(StageIdle),
		idLatch:   nopLatch(StageIdle),
		exLatch:   nopLatch(StageIdle),
		memLatch:  nopLatch(StageIdle),
		wbLatch:   nopLatch(StageIdle),
		doneLatch: nopLatch(StageIdle),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PC returns the next fetch address.
func (p *Pipeline) PC() uint64 {
	return p.pc
}

// SetPC sets the next fetch address.
func (p *Pipeline) SetPC(pc uint64) {
	p.pc = pc
}

// Halted reports whether the halt marker has retired.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Stats returns the run counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Committed:     p.committed,
		Cycles:        p.cycleCount,
		ICacheHits:    p.icache.Stats().Hits,
		ICacheMisses:  p.icache.Stats().Misses,
		DCacheHits:    p.dcache.Stats().Hits,
		DCacheMisses:  p.dcache.Stats().Misses,
		LoadUseStalls: p.loadUseStalls,
	}
}

// ICache returns the instruction cache.
func (p *Pipeline) ICache() *cache.Cache {
	return p.icache
}

// DCache returns the data cache.
func (p *Pipeline) DCache() *cache.Cache {
	return p.dcache
}

// Reset clears all pipeline and cache state.
func (p *Pipeline) Reset() {
	p.ifLatch = nopLatch(StageIdle)
	p.idLatch = nopLatch(StageIdle)
	p.exLatch = nopLatch(StageIdle)
	p.memLatch = nopLatch(StageIdle)
	p.wbLatch = nopLatch(StageIdle)
	p.doneLatch = nopLatch(StageIdle)
	p.pc = 0
	p.cycleCount = 0
	p.iMissRemaining = 0
	p.iMissActive = false
	p.dMissRemaining = 0
	p.dMissActive = false
	p.latchedMemInst = insts.Instruction{}
	p.pendingFlush = false
	p.pendingFlushPC = 0
	p.committed = 0
	p.loadUseStalls = 0
	p.halted = false
	p.icache.Reset()
	p.dcache.Reset()
}

// Tick advances the machine one cycle.
//
// Stages update latest to earliest so that each stage consumes the pre-tick
// value of the latch in front of it while hazard and forwarding logic can
// read the freshly computed values of the stages behind it. Deviating from
// this order produces one-cycle-off forwarding.
func (p *Pipeline) Tick() Status {
	if p.halted {
		return StatusHalt
	}
	p.cycleCount++

	// A flush scheduled last cycle (illegal instruction or memory fault)
	// takes effect now: redirect fetch and abandon any in-flight I-miss.
	applyFlush := p.pendingFlush
	p.pendingFlush = false
	if applyFlush {
		p.pc = p.pendingFlushPC
		p.iMissRemaining = 0
	}

	hz := detectHazards(p.idLatch.Inst, p.exLatch.Inst, p.memLatch.Inst)
	stall := hz.stall
	memStall := p.dMissActive
	flush := false
	branchStall := false
	status := StatusSuccess

	// ==================== WB ====================
	prevMEM := p.memLatch
	if memStall {
		// The pipeline is frozen behind an outstanding D-miss.
		p.wbLatch = nopLatch(StageBubble)
	} else {
		result := p.sim.SimWB(prevMEM.Inst)
		p.wbLatch = resultLatch(result, prevMEM)
		if !p.wbLatch.Inst.IsNop && p.wbLatch.Inst.IsLegal {
			p.committed++
		}
		if p.wbLatch.Inst.IsHalt {
			status = StatusHalt
		}
	}

	// ==================== MEM ====================
	prevEX := p.exLatch
	if p.dMissActive {
		if p.dMissRemaining > 0 {
			p.dMissRemaining--
		}
		if p.dMissRemaining == 0 {
			result := p.sim.SimMEM(p.latchedMemInst)
			p.memLatch = Latch{Inst: result, Status: StageNormal}
			p.dMissActive = false
		} else {
			p.memLatch = Latch{Inst: p.latchedMemInst, Status: StageNormal}
		}
	} else if prevEX.Inst.AccessesMem() && !prevEX.Inst.IsNop {
		inst := prevEX.Inst
		op := cache.OpRead
		if inst.WritesMem {
			op = cache.OpWrite
			inst = forwardStoreData(inst, p.wbLatch.Inst)
		}
		if p.dcache.Access(inst.MemAddress, op) {
			result := p.sim.SimMEM(inst)
			p.memLatch = resultLatch(result, prevEX)
		} else {
			// Detection cycle: latch the access and start the countdown.
			// Younger stages are not yet stalled; the freeze begins next
			// cycle and lasts through the resolution cycle.
			p.latchedMemInst = inst
			p.dMissRemaining = p.dcache.Config().MissLatency
			if p.dMissRemaining > 0 {
				p.dMissRemaining--
			}
			p.dMissActive = true
			p.memLatch = Latch{Inst: inst, Status: StageNormal}
		}
	} else {
		result := p.sim.SimMEM(prevEX.Inst)
		p.memLatch = resultLatch(result, prevEX)
	}

	// ==================== EX ====================
	prevID := p.idLatch
	switch {
	case memStall:
		// Hold. The instruction here re-enters MEM when the freeze lifts.
	case applyFlush:
		p.exLatch = nopLatch(StageSquashed)
	case stall:
		if hz.loadUse {
			p.loadUseStalls++
		}
		if prevID.Inst.IsNop && prevID.Status == StageIdle {
			p.exLatch = nopLatch(StageIdle)
		} else {
			p.exLatch = nopLatch(StageBubble)
		}
	case prevID.Inst.IsNop:
		switch prevID.Status {
		case StageIdle:
			p.exLatch = nopLatch(StageIdle)
		case StageSquashed:
			p.exLatch = nopLatch(StageSquashed)
		default:
			p.exLatch = nopLatch(StageBubble)
		}
	default:
		inst := forwardOperands(prevID.Inst, p.memLatch.Inst, p.wbLatch.Inst, p.doneLatch.Inst)
		result := p.sim.SimEX(inst)
		p.exLatch = Latch{Inst: result, Status: StageNormal}
	}

	// ==================== ID ====================
	prevIF := p.ifLatch
	switch {
	case applyFlush:
		p.idLatch = nopLatch(StageSquashed)
	case stall || memStall:
		// Hold.
	case prevIF.Inst.IsNop:
		// IF delivered a placeholder (miss wait or squash).
		if p.idLatch.Inst.IsNop && p.idLatch.Status == StageIdle {
			if prevIF.Status != StageIdle {
				p.idLatch = nopLatch(StageBubble)
			}
		} else if prevIF.Status == StageSquashed {
			p.idLatch = nopLatch(StageSquashed)
		} else {
			p.idLatch = nopLatch(StageBubble)
		}
	default:
		newID := p.sim.SimID(prevIF.Inst)
		if !newID.IsLegal {
			// The illegal word is displayed in ID this cycle; the squash
			// and redirect propagate next cycle.
			p.pendingFlush = true
			p.pendingFlushPC = ExceptionHandlerPC
			p.idLatch = Latch{Inst: newID, Status: StageNormal}
			break
		}

		if newID.IsBranchOrJALR() {
			ex := p.exLatch.Inst
			mem := p.memLatch.Inst
			if (newID.ReadsRs1 && writesTo(ex, newID.Rs1)) ||
				(newID.ReadsRs2 && writesTo(ex, newID.Rs2)) {
				branchStall = true
			}
			if mem.ReadsMem &&
				((newID.ReadsRs1 && writesTo(mem, newID.Rs1)) ||
					(newID.ReadsRs2 && writesTo(mem, newID.Rs2))) {
				branchStall = true
			}
		}

		if branchStall {
			p.idLatch = nopLatch(StageBubble)
			break
		}

		if newID.IsBranchOrJALR() {
			newID = forwardOperands(newID, p.memLatch.Inst, p.wbLatch.Inst, p.doneLatch.Inst)
			newID = p.sim.SimNextPCResolution(newID)
		}
		p.idLatch = Latch{Inst: newID, Status: StageNormal}

		// Branch resolved against the fall-through: redirect immediately so
		// IF squashes the wrong-path slot this same cycle.
		if !newID.IsHalt && newID.NextPC != prevIF.Inst.PC+4 {
			flush = true
			p.pc = newID.NextPC
		}
	}

	// ==================== IF ====================
	switch {
	case applyFlush:
		if p.icache.Access(p.pc, cache.OpRead) {
			inst := p.sim.SimIF(p.pc)
			p.ifLatch = Latch{Inst: inst, Status: StageNormal}
			p.pc += 4
			p.iMissActive = false
		} else {
			p.iMissRemaining = p.icache.Config().MissLatency
			p.iMissActive = true
			p.ifLatch = Latch{Inst: insts.NopAt(p.pc), Status: StageNormal}
		}
	case stall || branchStall || memStall:
		// Hold IF, but let an in-flight miss keep draining so the word can
		// materialize on the next non-stall cycle.
		if p.iMissRemaining > 0 {
			p.iMissRemaining--
		}
	case flush:
		// Branch misprediction: start the corrected-path fetch and squash
		// the speculative slot.
		if p.icache.Access(p.pc, cache.OpRead) {
			p.iMissRemaining = 0
			p.iMissActive = false
		} else {
			p.iMissRemaining = p.icache.Config().MissLatency
			p.iMissActive = true
		}
		p.ifLatch = Latch{Inst: insts.NopAt(p.pc), Status: StageSquashed}
	default:
		if p.iMissRemaining > 0 {
			p.iMissRemaining--
			if p.iMissRemaining == 0 && p.iMissActive {
				inst := p.sim.SimIF(p.pc)
				p.ifLatch = Latch{Inst: inst, Status: StageNormal}
				p.pc += 4
				p.iMissActive = false
			} else {
				p.ifLatch = Latch{Inst: insts.NopAt(p.pc), Status: StageNormal}
			}
		} else if p.iMissActive {
			// The countdown drained during a stall; deliver the word now.
			inst := p.sim.SimIF(p.pc)
			p.ifLatch = Latch{Inst: inst, Status: StageNormal}
			p.pc += 4
			p.iMissActive = false
		} else if p.icache.Access(p.pc, cache.OpRead) {
			inst := p.sim.SimIF(p.pc)
			p.ifLatch = Latch{Inst: inst, Status: StageNormal}
			p.pc += 4
		} else {
			p.iMissRemaining = p.icache.Config().MissLatency
			p.iMissActive = true
			p.ifLatch = Latch{Inst: insts.NopAt(p.pc), Status: StageNormal}
		}
	}

	// A memory fault observed in MEM schedules the redirect for next cycle,
	// after the faulting instruction has been displayed.
	if p.memLatch.Inst.MemException {
		p.pendingFlush = true
		p.pendingFlushPC = ExceptionHandlerPC
	}

	p.doneLatch = p.wbLatch

	if status == StatusHalt {
		p.halted = true
	}

	if p.tracer != nil {
		if err := p.tracer.WriteState(p.PipeState()); err != nil {
			return StatusError
		}
	}

	return status
}

// RunCycles executes up to cycles ticks, or until HALT when cycles is 0.
func (p *Pipeline) RunCycles(cycles uint64) Status {
	status := StatusSuccess
	for count := uint64(0); cycles == 0 || count < cycles; count++ {
		status = p.Tick()
		if status != StatusSuccess {
			break
		}
	}
	return status
}

// RunTillHalt executes single cycles until the run halts or errors.
func (p *Pipeline) RunTillHalt() Status {
	for {
		status := p.RunCycles(1)
		if status != StatusSuccess {
			return status
		}
	}
}

// PipeState returns the per-cycle dump snapshot of the current latches.
func (p *Pipeline) PipeState() PipeState {
	return PipeState{
		Cycle:     p.cycleCount,
		IFPC:      p.ifLatch.Inst.PC,
		IFStatus:  p.ifLatch.Status,
		IDInstr:   p.idLatch.Inst.Raw,
		IDStatus:  p.idLatch.Status,
		EXInstr:   p.exLatch.Inst.Raw,
		EXStatus:  p.exLatch.Status,
		MEMInstr:  p.memLatch.Inst.Raw,
		MEMStatus: p.memLatch.Status,
		WBInstr:   p.wbLatch.Inst.Raw,
		WBStatus:  p.wbLatch.Status,
	}
}

// Latches returns the current stage latches in IF, ID, EX, MEM, WB order.
func (p *Pipeline) Latches() [5]Latch {
	return [5]Latch{p.ifLatch, p.idLatch, p.exLatch, p.memLatch, p.wbLatch}
}
