// Package insts provides RV32I instruction definitions and decoding.
//
// This package decodes raw 32-bit RISC-V instruction words into the flat
// descriptor the pipeline carries between stages. It supports the RV32I base
// set: LUI, AUIPC, JAL, JALR, conditional branches, loads, stores,
// register-immediate and register-register ALU operations, FENCE, and
// ECALL/EBREAK. Register values are held in 64-bit fields; 32-bit results
// are kept sign-extended.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x0000A103, 0) // LW X2, 0(X1)
//	fmt.Printf("Opcode: %#x, Rd: %d, Rs1: %d\n", inst.Opcode, inst.Rd, inst.Rs1)
package insts

// Fixed encodings recognized by the machine.
const (
	// NopWord is the canonical RISC-V NOP (ADDI x0, x0, 0). Pipeline bubbles
	// carry this word.
	NopWord uint32 = 0x00000013

	// HaltWord is the halt marker. It is not a valid RV32I encoding; the
	// decoder treats it as a legal instruction with IsHalt set so that it
	// flows down the pipeline and terminates the run when it retires.
	HaltWord uint32 = 0xfeedfeed
)

// Opcode is the 7-bit major opcode of an instruction word.
type Opcode uint8

// RV32I major opcodes.
const (
	OpcodeLoad    Opcode = 0x03
	OpcodeMiscMem Opcode = 0x0f
	OpcodeOpImm   Opcode = 0x13
	OpcodeAuipc   Opcode = 0x17
	OpcodeStore   Opcode = 0x23
	OpcodeOp      Opcode = 0x33
	OpcodeLui     Opcode = 0x37
	OpcodeBranch  Opcode = 0x63
	OpcodeJalr    Opcode = 0x67
	OpcodeJal     Opcode = 0x6f
	OpcodeSystem  Opcode = 0x73
)

// Instruction is the flat descriptor produced by the functional simulator and
// carried through the pipeline latches. Display status is deliberately not
// part of the descriptor; it belongs to the latch that holds it.
type Instruction struct {
	// Raw is the 32-bit instruction word.
	Raw uint32

	// PC is the address the word was fetched from.
	PC uint64

	// Decoded fields.
	Opcode Opcode
	Funct3 uint8
	Funct7 uint8
	Rs1    uint8
	Rs2    uint8
	Rd     uint8
	Imm    uint64

	// Operand values read in ID (possibly replaced by forwarding).
	Op1Val uint64
	Op2Val uint64

	// Results.
	ArithResult uint64
	MemResult   uint64
	MemAddress  uint64
	NextPC      uint64

	// Behavior flags.
	ReadsRs1  bool
	ReadsRs2  bool
	WritesRd  bool
	ReadsMem  bool
	WritesMem bool

	// IsNop marks a pipeline-injected bubble. A fetched NopWord decodes as a
	// real ADDI and does not set this flag.
	IsNop bool

	// IsHalt marks the halt marker word.
	IsHalt bool

	// IsLegal is false for words the decoder does not recognize.
	IsLegal bool

	// MemException is set by the memory stage on a faulting access.
	MemException bool
}

// IsBranchOrJALR reports whether the instruction resolves its next PC from
// register operands in the decode stage.
func (i Instruction) IsBranchOrJALR() bool {
	return i.Opcode == OpcodeBranch || i.Opcode == OpcodeJalr
}

// AccessesMem reports whether the instruction touches data memory.
func (i Instruction) AccessesMem() bool {
	return i.ReadsMem || i.WritesMem
}

// Nop returns a pipeline bubble descriptor. Bubbles are legal, carry the NOP
// encoding, and never cause hazards.
func Nop() Instruction {
	return Instruction{
		Raw:     NopWord,
		IsNop:   true,
		IsLegal: true,
	}
}

// NopAt returns a pipeline bubble that occupies the fetch slot for pc while a
// cache miss is outstanding.
func NopAt(pc uint64) Instruction {
	n := Nop()
	n.PC = pc
	return n
}
