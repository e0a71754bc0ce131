package pipeline

import (
	"fmt"
	"os"
)

// PipeState is the per-cycle dump record: which instruction occupies each
// stage and how it should be displayed.
type PipeState struct {
	Cycle     uint64
	IFPC      uint64
	IFStatus  StageStatus
	IDInstr   uint32
	IDStatus  StageStatus
	EXInstr   uint32
	EXStatus  StageStatus
	MEMInstr  uint32
	MEMStatus StageStatus
	WBInstr   uint32
	WBStatus  StageStatus
}

// Tracer appends one PipeState row per cycle to <prefix>_pipe_state.out.
type Tracer struct {
	file *os.File
}

// NewTracer creates the pipe state file and writes its header.
func NewTracer(prefix string) (*Tracer, error) {
	f, err := os.Create(prefix + "_pipe_state.out")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe state file: %w", err)
	}

	_, err = fmt.Fprintf(f, "%8s %18s %18s %18s %18s %18s\n",
		"CYCLE", "IF", "ID", "EX", "MEM", "WB")
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write pipe state header: %w", err)
	}

	return &Tracer{file: f}, nil
}

// WriteState appends one row.
func (t *Tracer) WriteState(ps PipeState) error {
	_, err := fmt.Fprintf(t.file,
		"%8d %08x/%-9s %08x/%-9s %08x/%-9s %08x/%-9s %08x/%-9s\n",
		ps.Cycle,
		ps.IFPC, ps.IFStatus,
		ps.IDInstr, ps.IDStatus,
		ps.EXInstr, ps.EXStatus,
		ps.MEMInstr, ps.MEMStatus,
		ps.WBInstr, ps.WBStatus)
	if err != nil {
		return fmt.Errorf("failed to write pipe state row: %w", err)
	}
	return nil
}

// Close flushes and closes the pipe state file.
func (t *Tracer) Close() error {
	return t.file.Close()
}

// WriteSimStats writes the end-of-run statistics to <prefix>_sim_stats.out.
func WriteSimStats(stats Stats, prefix string) error {
	f, err := os.Create(prefix + "_sim_stats.out")
	if err != nil {
		return fmt.Errorf("failed to create sim stats file: %w", err)
	}
	defer func() { _ = f.Close() }()

	fmt.Fprintf(f, "Committed Instructions: %d\n", stats.Committed)
	fmt.Fprintf(f, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(f, "I-Cache Hits: %d\n", stats.ICacheHits)
	fmt.Fprintf(f, "I-Cache Misses: %d\n", stats.ICacheMisses)
	fmt.Fprintf(f, "D-Cache Hits: %d\n", stats.DCacheHits)
	fmt.Fprintf(f, "D-Cache Misses: %d\n", stats.DCacheMisses)
	fmt.Fprintf(f, "Load-Use Stalls: %d\n", stats.LoadUseStalls)

	return nil
}
