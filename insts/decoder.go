package insts

// Decoder decodes raw RV32I instruction words.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// signExtend sign-extends the low bits of value to 64 bits.
func signExtend(value uint64, bits uint) uint64 {
	shift := 64 - bits
	return uint64(int64(value<<shift) >> shift)
}

// immI extracts the I-type immediate.
func immI(word uint32) uint64 {
	return signExtend(uint64(word>>20), 12)
}

// immS extracts the S-type immediate.
func immS(word uint32) uint64 {
	v := uint64(word>>25)<<5 | uint64(word>>7)&0x1f
	return signExtend(v, 12)
}

// immB extracts the B-type immediate.
func immB(word uint32) uint64 {
	v := uint64(word>>31)<<12 |
		(uint64(word>>7)&0x1)<<11 |
		(uint64(word>>25)&0x3f)<<5 |
		(uint64(word>>8)&0xf)<<1
	return signExtend(v, 13)
}

// immU extracts the U-type immediate.
func immU(word uint32) uint64 {
	return signExtend(uint64(word)&0xfffff000, 32)
}

// immJ extracts the J-type immediate.
func immJ(word uint32) uint64 {
	v := uint64(word>>31)<<20 |
		(uint64(word>>12)&0xff)<<12 |
		(uint64(word>>20)&0x1)<<11 |
		(uint64(word>>21)&0x3ff)<<1
	return signExtend(v, 21)
}

// Decode decodes one instruction word fetched from pc. The returned
// descriptor has its register fields, immediate, and behavior flags filled
// in; operand values and results are left for the pipeline stages.
func (d *Decoder) Decode(word uint32, pc uint64) Instruction {
	inst := Instruction{
		Raw: word,
		PC:  pc,
	}

	if word == HaltWord {
		inst.IsHalt = true
		inst.IsLegal = true
		return inst
	}

	opcode := Opcode(word & 0x7f)
	funct3 := uint8(word >> 12 & 0x7)
	funct7 := uint8(word >> 25)
	rd := uint8(word >> 7 & 0x1f)
	rs1 := uint8(word >> 15 & 0x1f)
	rs2 := uint8(word >> 20 & 0x1f)

	inst.Opcode = opcode
	inst.Funct3 = funct3

	switch opcode {
	case OpcodeLui, OpcodeAuipc:
		inst.Rd = rd
		inst.WritesRd = true
		inst.Imm = immU(word)
		inst.IsLegal = true

	case OpcodeJal:
		inst.Rd = rd
		inst.WritesRd = true
		inst.Imm = immJ(word)
		inst.IsLegal = true

	case OpcodeJalr:
		if funct3 != 0 {
			return inst
		}
		inst.Rd = rd
		inst.Rs1 = rs1
		inst.WritesRd = true
		inst.ReadsRs1 = true
		inst.Imm = immI(word)
		inst.IsLegal = true

	case OpcodeBranch:
		switch funct3 {
		case 0x0, 0x1, 0x4, 0x5, 0x6, 0x7:
		default:
			return inst
		}
		inst.Rs1 = rs1
		inst.Rs2 = rs2
		inst.ReadsRs1 = true
		inst.ReadsRs2 = true
		inst.Imm = immB(word)
		inst.IsLegal = true

	case OpcodeLoad:
		switch funct3 {
		case 0x0, 0x1, 0x2, 0x4, 0x5:
		default:
			return inst
		}
		inst.Rd = rd
		inst.Rs1 = rs1
		inst.WritesRd = true
		inst.ReadsRs1 = true
		inst.ReadsMem = true
		inst.Imm = immI(word)
		inst.IsLegal = true

	case OpcodeStore:
		switch funct3 {
		case 0x0, 0x1, 0x2:
		default:
			return inst
		}
		inst.Rs1 = rs1
		inst.Rs2 = rs2
		inst.ReadsRs1 = true
		inst.ReadsRs2 = true
		inst.WritesMem = true
		inst.Imm = immS(word)
		inst.IsLegal = true

	case OpcodeOpImm:
		switch funct3 {
		case 0x1: // SLLI
			if funct7 != 0x00 {
				return inst
			}
		case 0x5: // SRLI / SRAI
			if funct7 != 0x00 && funct7 != 0x20 {
				return inst
			}
			inst.Funct7 = funct7
		}
		inst.Rd = rd
		inst.Rs1 = rs1
		inst.WritesRd = true
		inst.ReadsRs1 = true
		inst.Imm = immI(word)
		inst.IsLegal = true

	case OpcodeOp:
		switch funct7 {
		case 0x00:
		case 0x20:
			if funct3 != 0x0 && funct3 != 0x5 { // only SUB and SRA
				return inst
			}
		default:
			return inst
		}
		inst.Rd = rd
		inst.Rs1 = rs1
		inst.Rs2 = rs2
		inst.Funct7 = funct7
		inst.WritesRd = true
		inst.ReadsRs1 = true
		inst.ReadsRs2 = true
		inst.IsLegal = true

	case OpcodeMiscMem:
		// FENCE and FENCE.I are architectural no-ops on this machine.
		inst.IsLegal = funct3 == 0x0 || funct3 == 0x1

	case OpcodeSystem:
		// ECALL and EBREAK decode as legal no-ops; the machine has no
		// privileged state for them to touch. CSR accesses are illegal.
		inst.IsLegal = funct3 == 0x0 && (word>>20 == 0x000 || word>>20 == 0x001) &&
			rd == 0 && rs1 == 0

	default:
		// IsLegal stays false.
	}

	return inst
}
