package core_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/timing/cache"
	"github.com/sarchlab/rv5sim/timing/core"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

var _ = Describe("Core", func() {
	var (
		memory *emu.Memory
		sim    *emu.Simulator
		config cache.Config
	)

	BeforeEach(func() {
		memory = emu.NewMemoryWithSize(0x10000)
		memory.Write32(0, insts.NopWord)
		memory.Write32(4, insts.NopWord)
		memory.Write32(8, insts.HaltWord)
		sim = emu.NewSimulator(&emu.RegFile{}, memory)
		config = cache.Config{Size: 16, BlockSize: 16, Ways: 1, MissLatency: 2}
	})

	It("should run a program till halt", func() {
		c, err := core.NewCore(sim, config, config)
		Expect(err).NotTo(HaveOccurred())

		status := c.RunTillHalt()

		Expect(status).To(Equal(pipeline.StatusHalt))
		Expect(c.Halted()).To(BeTrue())
		Expect(c.Stats().Committed).To(Equal(uint64(3)))
	})

	It("should stop at a cycle bound", func() {
		c, err := core.NewCore(sim, config, config)
		Expect(err).NotTo(HaveOccurred())

		status := c.RunCycles(2)

		Expect(status).To(Equal(pipeline.StatusSuccess))
		Expect(c.Stats().Cycles).To(Equal(uint64(2)))
		Expect(c.Halted()).To(BeFalse())
	})

	It("should reject invalid cache geometry", func() {
		bad := cache.Config{Size: 15, BlockSize: 4, Ways: 1, MissLatency: 2}
		_, err := core.NewCore(sim, bad, config)
		Expect(err).To(HaveOccurred())
	})

	It("should start at a configured entry PC", func() {
		memory.Write32(0x1000, insts.HaltWord)

		c, err := core.NewCore(sim, config, config, core.WithEntryPC(0x1000))
		Expect(err).NotTo(HaveOccurred())

		status := c.RunTillHalt()
		Expect(status).To(Equal(pipeline.StatusHalt))
		Expect(c.Stats().Committed).To(Equal(uint64(1)))
	})

	Describe("Output files", func() {
		It("should write the trace, stats, and cache dumps", func() {
			prefix := filepath.Join(GinkgoT().TempDir(), "run")

			c, err := core.NewCore(sim, config, config,
				core.WithOutputPrefix(prefix))
			Expect(err).NotTo(HaveOccurred())

			Expect(c.RunTillHalt()).To(Equal(pipeline.StatusHalt))
			Expect(c.Finalize()).To(Succeed())
			Expect(c.DumpCaches()).To(Succeed())

			stats, err := os.ReadFile(prefix + "_sim_stats.out")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(stats)).To(ContainSubstring("Committed Instructions: 3"))

			trace, err := os.ReadFile(prefix + "_pipe_state.out")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(trace)).To(ContainSubstring("CYCLE"))
			Expect(string(trace)).To(ContainSubstring("NORMAL"))

			_, err = os.Stat(prefix + "_icache_state.out")
			Expect(err).NotTo(HaveOccurred())
			_, err = os.Stat(prefix + "_dcache_state.out")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
