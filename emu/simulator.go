package emu

import (
	"github.com/sarchlab/rv5sim/insts"
)

// Simulator implements the per-stage functional model the timing pipeline
// drives. Each Sim* method takes an instruction descriptor, performs the
// architectural work of one stage, and returns the updated descriptor. The
// pipeline decides when each stage runs and what operand values it sees; the
// simulator never looks at pipeline state.
type Simulator struct {
	decoder *insts.Decoder
	regFile *RegFile
	memory  *Memory
}

// NewSimulator creates a functional simulator over the given register file
// and memory.
func NewSimulator(regFile *RegFile, memory *Memory) *Simulator {
	return &Simulator{
		decoder: insts.NewDecoder(),
		regFile: regFile,
		memory:  memory,
	}
}

// Memory returns the simulator's backing memory.
func (s *Simulator) Memory() *Memory {
	return s.memory
}

// RegFile returns the simulator's register file.
func (s *Simulator) RegFile() *RegFile {
	return s.regFile
}

// sext32 sign-extends a 32-bit value to 64 bits.
func sext32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// SimIF fetches one instruction word from pc. Decode happens in SimID.
func (s *Simulator) SimIF(pc uint64) insts.Instruction {
	return insts.Instruction{
		Raw: s.memory.Read32(pc),
		PC:  pc,
	}
}

// SimID decodes the fetched word, reads source operands from the register
// file, and sets the fall-through next PC. JAL targets are PC-relative with
// no register operands, so they resolve here; branches and JALR resolve in
// SimNextPCResolution once their operands are forwarded.
func (s *Simulator) SimID(inst insts.Instruction) insts.Instruction {
	d := s.decoder.Decode(inst.Raw, inst.PC)

	if d.ReadsRs1 {
		d.Op1Val = s.regFile.ReadReg(d.Rs1)
	}
	if d.ReadsRs2 {
		d.Op2Val = s.regFile.ReadReg(d.Rs2)
	}

	d.NextPC = d.PC + 4
	if d.IsLegal && d.Opcode == insts.OpcodeJal {
		d.NextPC = d.PC + d.Imm
	}

	return d
}

// SimNextPCResolution resolves the next PC of a branch or JALR from the
// operand values currently in the descriptor.
func (s *Simulator) SimNextPCResolution(inst insts.Instruction) insts.Instruction {
	switch inst.Opcode {
	case insts.OpcodeBranch:
		if branchTaken(inst) {
			inst.NextPC = inst.PC + inst.Imm
		} else {
			inst.NextPC = inst.PC + 4
		}
	case insts.OpcodeJalr:
		inst.NextPC = (inst.Op1Val + inst.Imm) &^ 1
	}
	return inst
}

// branchTaken evaluates a conditional branch.
func branchTaken(inst insts.Instruction) bool {
	a, b := inst.Op1Val, inst.Op2Val
	switch inst.Funct3 {
	case 0x0: // BEQ
		return a == b
	case 0x1: // BNE
		return a != b
	case 0x4: // BLT
		return int64(a) < int64(b)
	case 0x5: // BGE
		return int64(a) >= int64(b)
	case 0x6: // BLTU
		return a < b
	case 0x7: // BGEU
		return a >= b
	}
	return false
}

// SimEX computes the arithmetic result or the memory address.
func (s *Simulator) SimEX(inst insts.Instruction) insts.Instruction {
	switch inst.Opcode {
	case insts.OpcodeLui:
		inst.ArithResult = inst.Imm
	case insts.OpcodeAuipc:
		inst.ArithResult = sext32(uint32(inst.PC) + uint32(inst.Imm))
	case insts.OpcodeJal, insts.OpcodeJalr:
		inst.ArithResult = inst.PC + 4
	case insts.OpcodeLoad, insts.OpcodeStore:
		inst.MemAddress = inst.Op1Val + inst.Imm
	case insts.OpcodeOpImm:
		inst.ArithResult = aluOp(inst.Funct3, inst.Funct7, inst.Op1Val, inst.Imm)
	case insts.OpcodeOp:
		inst.ArithResult = aluOp(inst.Funct3, inst.Funct7, inst.Op1Val, inst.Op2Val)
	}
	return inst
}

// aluOp executes one RV32I ALU operation. Results are 32-bit, sign-extended
// into the 64-bit register value.
func aluOp(funct3, funct7 uint8, a, b uint64) uint64 {
	switch funct3 {
	case 0x0: // ADD / SUB
		if funct7 == 0x20 {
			return sext32(uint32(a) - uint32(b))
		}
		return sext32(uint32(a) + uint32(b))
	case 0x1: // SLL
		return sext32(uint32(a) << (b & 0x1f))
	case 0x2: // SLT
		if int64(a) < int64(b) {
			return 1
		}
		return 0
	case 0x3: // SLTU
		if a < b {
			return 1
		}
		return 0
	case 0x4: // XOR
		return sext32(uint32(a) ^ uint32(b))
	case 0x5: // SRL / SRA
		if funct7 == 0x20 {
			return sext32(uint32(int32(a) >> (b & 0x1f)))
		}
		return sext32(uint32(a) >> (b & 0x1f))
	case 0x6: // OR
		return sext32(uint32(a) | uint32(b))
	case 0x7: // AND
		return sext32(uint32(a) & uint32(b))
	}
	return 0
}

// accessSize returns the number of bytes a load or store touches.
func accessSize(funct3 uint8) uint64 {
	switch funct3 & 0x3 {
	case 0x0:
		return 1
	case 0x1:
		return 2
	default:
		return 4
	}
}

// SimMEM performs the load or store. Out-of-range accesses set MemException
// and leave memory and the result untouched.
func (s *Simulator) SimMEM(inst insts.Instruction) insts.Instruction {
	if !inst.AccessesMem() || inst.IsNop {
		return inst
	}

	size := accessSize(inst.Funct3)
	if !s.memory.InRange(inst.MemAddress, size) {
		inst.MemException = true
		return inst
	}

	if inst.ReadsMem {
		switch inst.Funct3 {
		case 0x0: // LB
			inst.MemResult = uint64(int64(int8(s.memory.Read8(inst.MemAddress))))
		case 0x1: // LH
			inst.MemResult = uint64(int64(int16(s.memory.Read16(inst.MemAddress))))
		case 0x2: // LW
			inst.MemResult = sext32(s.memory.Read32(inst.MemAddress))
		case 0x4: // LBU
			inst.MemResult = uint64(s.memory.Read8(inst.MemAddress))
		case 0x5: // LHU
			inst.MemResult = uint64(s.memory.Read16(inst.MemAddress))
		}
		return inst
	}

	switch inst.Funct3 {
	case 0x0: // SB
		s.memory.Write8(inst.MemAddress, uint8(inst.Op2Val))
	case 0x1: // SH
		s.memory.Write16(inst.MemAddress, uint16(inst.Op2Val))
	case 0x2: // SW
		s.memory.Write32(inst.MemAddress, uint32(inst.Op2Val))
	}
	return inst
}

// SimWB retires the instruction: writes the destination register and
// identifies the halt marker. Faulted instructions do not write back.
func (s *Simulator) SimWB(inst insts.Instruction) insts.Instruction {
	if inst.Raw == insts.HaltWord {
		inst.IsHalt = true
	}

	if inst.WritesRd && inst.IsLegal && !inst.IsNop && !inst.MemException {
		value := inst.ArithResult
		if inst.ReadsMem {
			value = inst.MemResult
		}
		s.regFile.WriteReg(inst.Rd, value)
	}

	return inst
}
