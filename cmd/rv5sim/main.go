// Package main provides the entry point for rv5sim, a cycle-accurate
// simulator of a five-stage in-order RISC-V pipeline with split caches.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/loader"
	"github.com/sarchlab/rv5sim/timing/cache"
	"github.com/sarchlab/rv5sim/timing/core"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

var (
	icacheSize    int
	icacheBlock   int
	icacheWays    int
	icacheLatency uint64

	dcacheSize    int
	dcacheBlock   int
	dcacheWays    int
	dcacheLatency uint64

	outputPrefix string
	cycles       uint64
	memSize      uint64
	dumpCaches   bool
)

var rootCmd = &cobra.Command{
	Use:   "rv5sim <image>",
	Short: "Cycle-accurate five-stage RISC-V pipeline simulator",
	Long: `rv5sim simulates a classic five-stage in-order RISC-V pipeline with ` +
		`split instruction and data caches. It loads a flat program image at ` +
		`address 0, runs until the halt marker retires (or a cycle bound is ` +
		`reached), and writes per-cycle pipe state and final statistics files.`,
	Args: cobra.ExactArgs(1),
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&icacheSize, "icache-size", 16*1024, "I-cache size in bytes")
	flags.IntVar(&icacheBlock, "icache-block", 64, "I-cache block size in bytes")
	flags.IntVar(&icacheWays, "icache-ways", 4, "I-cache associativity")
	flags.Uint64Var(&icacheLatency, "icache-latency", 10, "I-cache miss latency in cycles")
	flags.IntVar(&dcacheSize, "dcache-size", 16*1024, "D-cache size in bytes")
	flags.IntVar(&dcacheBlock, "dcache-block", 64, "D-cache block size in bytes")
	flags.IntVar(&dcacheWays, "dcache-ways", 4, "D-cache associativity")
	flags.Uint64Var(&dcacheLatency, "dcache-latency", 10, "D-cache miss latency in cycles")
	flags.StringVar(&outputPrefix, "output", "sim", "output file prefix")
	flags.Uint64Var(&cycles, "cycles", 0, "cycle bound, 0 runs until halt")
	flags.Uint64Var(&memSize, "mem-size", emu.DefaultMemorySize, "memory size in bytes")
	flags.BoolVar(&dumpCaches, "dump-caches", false, "write cache state files")
}

func run(cmd *cobra.Command, args []string) error {
	image, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	memory := emu.NewMemoryWithSize(memSize)
	memory.LoadBytes(0, image)
	regFile := &emu.RegFile{}
	sim := emu.NewSimulator(regFile, memory)

	iCacheConfig := cache.Config{
		Size:        icacheSize,
		BlockSize:   icacheBlock,
		Ways:        icacheWays,
		MissLatency: icacheLatency,
	}
	dCacheConfig := cache.Config{
		Size:        dcacheSize,
		BlockSize:   dcacheBlock,
		Ways:        dcacheWays,
		MissLatency: dcacheLatency,
	}

	c, err := core.NewCore(sim, iCacheConfig, dCacheConfig,
		core.WithOutputPrefix(outputPrefix))
	if err != nil {
		return err
	}

	// The stats and trace files must land even when a later step fails.
	atexit.Register(func() { _ = c.Finalize() })

	status := c.RunCycles(cycles)
	if status == pipeline.StatusError {
		return fmt.Errorf("failed to write pipe state trace")
	}

	if err := c.Finalize(); err != nil {
		return err
	}
	if dumpCaches {
		if err := c.DumpCaches(); err != nil {
			return err
		}
	}

	stats := c.Stats()
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Committed Instructions: %d\n", stats.Committed)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("CPI: %.2f\n", stats.CPI())

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
