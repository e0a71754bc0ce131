package cache_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/timing/cache"
)

var _ = Describe("Cache", func() {
	newCache := func(size, block, ways int) *cache.Cache {
		c, err := cache.New(cache.Config{
			Size:        size,
			BlockSize:   block,
			Ways:        ways,
			MissLatency: 2,
		}, cache.KindDCache)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("Round trip", func() {
		It("should miss cold and hit warm", func() {
			c := newCache(16, 4, 1)

			Expect(c.Access(0x40, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x40, cache.OpRead)).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should hit different words of the same block", func() {
			c := newCache(64, 16, 1)

			Expect(c.Access(0x20, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x24, cache.OpRead)).To(BeTrue())
			Expect(c.Access(0x2C, cache.OpRead)).To(BeTrue())
		})
	})

	Describe("Write allocation", func() {
		It("should allocate on write miss", func() {
			c := newCache(16, 4, 1)

			Expect(c.Access(0x40, cache.OpWrite)).To(BeFalse())
			Expect(c.Access(0x40, cache.OpRead)).To(BeTrue())
		})

		It("should label reads and writes in the statistics", func() {
			c := newCache(16, 4, 1)

			c.Access(0x40, cache.OpWrite)
			c.Access(0x40, cache.OpRead)
			c.Access(0x44, cache.OpRead)

			stats := c.Stats()
			Expect(stats.Writes).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(2)))
		})
	})

	Describe("LRU replacement", func() {
		// 16 bytes, 4-byte blocks, 2 ways: 2 sets. Addresses 0x00, 0x08,
		// 0x10, ... all map to set 0.
		It("should evict the least recently used line deterministically", func() {
			c := newCache(16, 4, 2)

			Expect(c.Access(0x00, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x08, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x00, cache.OpRead)).To(BeTrue())

			// Set 0 is full; 0x08 is the LRU line and must be the victim.
			Expect(c.Access(0x10, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x08, cache.OpRead)).To(BeFalse()) // evicted above
			Expect(c.Stats().Evictions).To(Equal(uint64(2)))

			// Refilling 0x08 evicted 0x00 (LRU after the 0x10 fill).
			Expect(c.Access(0x10, cache.OpRead)).To(BeTrue())
			Expect(c.Access(0x00, cache.OpRead)).To(BeFalse())
		})

		It("should keep at most ways lines per set", func() {
			c := newCache(16, 4, 2)

			// Four distinct blocks of set 0 through a 2-way set: every
			// round-robin revisit misses again.
			addrs := []uint64{0x00, 0x08, 0x10, 0x18}
			for _, a := range addrs {
				Expect(c.Access(a, cache.OpRead)).To(BeFalse())
			}
			for _, a := range addrs {
				Expect(c.Access(a, cache.OpRead)).To(BeFalse())
			}
			Expect(c.Stats().Hits).To(Equal(uint64(0)))
		})
	})

	Describe("Direct-mapped geometry", func() {
		It("should thrash between conflicting addresses", func() {
			c := newCache(16, 4, 1)

			// 0x00 and 0x10 map to the same set of the 4-set cache.
			Expect(c.Access(0x00, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x10, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x00, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x04, cache.OpRead)).To(BeFalse()) // different set
			Expect(c.Access(0x00, cache.OpRead)).To(BeTrue())
		})
	})

	Describe("Fully-associative geometry", func() {
		It("should hold every block until capacity", func() {
			c := newCache(16, 4, 4) // one set of four ways

			for _, a := range []uint64{0x00, 0x04, 0x08, 0x0C} {
				Expect(c.Access(a, cache.OpRead)).To(BeFalse())
			}
			for _, a := range []uint64{0x00, 0x04, 0x08, 0x0C} {
				Expect(c.Access(a, cache.OpRead)).To(BeTrue())
			}

			// Capacity exceeded: the LRU block 0x00 is evicted. Refilling it
			// in turn evicts 0x04, the LRU after the 0x10 fill.
			Expect(c.Access(0x10, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x00, cache.OpRead)).To(BeFalse())
			Expect(c.Access(0x08, cache.OpRead)).To(BeTrue())
		})
	})

	Describe("Reset", func() {
		It("should invalidate lines and clear statistics", func() {
			c := newCache(16, 4, 1)
			c.Access(0x40, cache.OpRead)

			c.Reset()

			Expect(c.Stats().Misses).To(Equal(uint64(0)))
			Expect(c.Access(0x40, cache.OpRead)).To(BeFalse())
		})
	})

	Describe("Dump", func() {
		It("should write the cache state file", func() {
			c := newCache(16, 4, 2)
			c.Access(0x00, cache.OpRead)
			c.Access(0x00, cache.OpRead)

			prefix := filepath.Join(GinkgoT().TempDir(), "test")
			Expect(c.Dump(prefix)).To(Succeed())

			data, err := os.ReadFile(prefix + "_dcache_state.out")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("Hits: 1"))
			Expect(string(data)).To(ContainSubstring("Misses: 1"))
			Expect(string(data)).To(ContainSubstring("Sets: 2"))
		})
	})
})
