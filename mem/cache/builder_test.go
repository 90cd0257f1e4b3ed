package cache

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	It("should default to a 512B direct-mapped cache", func() {
		s := MakeBuilder().MustBuild("Default")

		g := s.Geometry()
		Expect(g.CacheByteSize).To(Equal(512))
		Expect(g.BlockSize).To(Equal(8))
		Expect(g.Associativity).To(Equal(1))
		Expect(g.IsDirectMapped()).To(BeTrue())
		Expect(s.Name()).To(Equal("Default"))
		Expect(s.TagMode()).To(Equal(TagShifted))
	})

	DescribeTable("should pick the policy from the associativity",
		func(associativity int, policy string) {
			s := MakeBuilder().
				WithCacheByteSize(512).
				WithBlockSize(8).
				WithAssociativity(associativity).
				MustBuild("Cache")

			Expect(s.PolicyName()).To(Equal(policy))
		},
		Entry("one way", 1, "direct-mapped"),
		Entry("two ways", 2, "2-way set-associative"),
		Entry("eight ways", 8, "8-way set-associative"),
		Entry("all ways", 64, "fully-associative"),
	)

	DescribeTable("should keep the geometry consistent",
		func(cacheByteSize, blockSize, associativity int) {
			g, err := MakeBuilder().
				WithCacheByteSize(cacheByteSize).
				WithBlockSize(blockSize).
				WithAssociativity(associativity).
				Geometry()

			Expect(err).NotTo(HaveOccurred())
			Expect(g.NumSets * g.Associativity).To(Equal(g.NumBlocks))
			Expect(g.NumBlocks * g.BlockSize).To(Equal(g.CacheByteSize))
			Expect(g.OffsetBits + g.IndexBits + g.TagBits).To(Equal(32))
		},
		Entry("direct-mapped", 512, 8, 1),
		Entry("set-associative", 32*1024, 64, 4),
		Entry("fully-associative", 1024, 16, 64),
		Entry("single block", 8, 8, 1),
	)

	DescribeTable("should reject invalid configurations",
		func(cacheByteSize, blockSize, associativity int, field string) {
			_, err := MakeBuilder().
				WithCacheByteSize(cacheByteSize).
				WithBlockSize(blockSize).
				WithAssociativity(associativity).
				Build("Bad")

			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())

			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			Expect(configErr.Field).To(Equal(field))
		},
		Entry("zero cache size", 0, 8, 1, "cache size"),
		Entry("block size not a power of two", 512, 12, 1, "block size"),
		Entry("zero associativity", 512, 8, 0, "associativity"),
		Entry("cache size not a multiple of block size", 500, 8, 1,
			"cache size"),
		Entry("associativity not dividing blocks", 512, 8, 3,
			"associativity"),
		Entry("set count not a power of two", 384, 8, 1, "number of sets"),
	)

	It("should panic on invalid configuration with MustBuild", func() {
		Expect(func() {
			MakeBuilder().WithBlockSize(3).MustBuild("Bad")
		}).To(Panic())
	})
})
