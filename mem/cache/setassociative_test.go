package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Set-associative cache", func() {
	// 512B, 8B blocks, 2 ways -> 32 sets. Blocks 256 bytes apart share a set.
	const (
		a = uint32(0x000)
		b = uint32(0x100)
		c = uint32(0x200)
		d = uint32(0x300)
	)

	Context("with counter recency", func() {
		var s *Simulator

		BeforeEach(func() {
			s = MakeBuilder().
				WithCacheByteSize(512).
				WithBlockSize(8).
				WithAssociativity(2).
				MustBuild("SA")
		})

		It("should describe its geometry", func() {
			g := s.Geometry()
			Expect(g.NumSets).To(Equal(32))
			Expect(g.NumSets * g.Associativity).To(Equal(g.NumBlocks))
			Expect(s.PolicyName()).To(Equal("2-way set-associative"))
		})

		It("should fill empty ways in slot order", func() {
			Expect(s.Access(a).Way).To(Equal(0))
			Expect(s.Access(b).Way).To(Equal(1))

			set := s.Set(0)
			Expect(set).To(HaveLen(2))
			Expect(set[0].Tag()).To(Equal(uint64(0)))
			Expect(set[1].Tag()).To(Equal(uint64(1)))
			Expect(set[0].Recency()).To(Equal(uint64(1)))
			Expect(set[1].Recency()).To(Equal(uint64(1)))
		})

		It("should hold two blocks of the same set", func() {
			Expect(s.Process(a)).To(BeFalse())
			Expect(s.Process(b)).To(BeFalse())
			Expect(s.Process(a)).To(BeTrue())
		})

		It("should pull the hit line above its siblings", func() {
			s.Process(a)
			s.Process(b)
			s.Process(a)

			set := s.Set(0)
			Expect(set[0].Recency()).To(Equal(uint64(2)))
			Expect(set[1].Recency()).To(Equal(uint64(1)))

			s.Process(b)

			set = s.Set(0)
			Expect(set[1].Recency()).To(Equal(uint64(3)))
			Expect(set[1].Recency()).To(BeNumerically(">", set[0].Recency()))
		})

		It("should evict the least recently touched block", func() {
			s.Process(a)
			s.Process(b)
			s.Process(a)

			result := s.Access(c)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedTag).To(Equal(uint64(1)))
			Expect(result.Way).To(Equal(1))

			Expect(s.Process(a)).To(BeTrue())
			Expect(s.Process(b)).To(BeFalse())
		})

		It("should evict a fresh install before an often used line", func() {
			s.Process(a)
			s.Process(b)
			s.Process(a)
			s.Process(a)
			s.Process(c)
			s.Process(d)

			Expect(s.Process(a)).To(BeTrue())
			Expect(s.Process(c)).To(BeFalse())
		})
	})

	Context("with timestamp recency", func() {
		var s *Simulator

		BeforeEach(func() {
			s = MakeBuilder().
				WithCacheByteSize(512).
				WithBlockSize(8).
				WithAssociativity(2).
				WithRecencyMode(RecencyTimestamp).
				MustBuild("SA-LRU")
		})

		It("should record the access clock", func() {
			s.Process(a)
			s.Process(b)
			s.Process(a)

			set := s.Set(0)
			Expect(set[0].Recency()).To(Equal(uint64(3)))
			Expect(set[1].Recency()).To(Equal(uint64(2)))
		})

		It("should evict the least recently used block", func() {
			s.Process(a)
			s.Process(b)
			s.Process(a)
			s.Process(a)
			s.Process(c)
			s.Process(d)

			Expect(s.Process(c)).To(BeTrue())
			Expect(s.Process(a)).To(BeFalse())
		})
	})

	Context("with four ways", func() {
		It("should keep four blocks of one set", func() {
			s := MakeBuilder().
				WithCacheByteSize(512).
				WithBlockSize(8).
				WithAssociativity(4).
				MustBuild("SA4")

			stride := uint32(s.Geometry().NumSets * s.Geometry().BlockSize)
			for i := uint32(0); i < 4; i++ {
				Expect(s.Process(i * stride)).To(BeFalse())
			}

			for i := uint32(0); i < 4; i++ {
				Expect(s.Process(i * stride)).To(BeTrue())
			}

			Expect(s.Stats().Evictions).To(BeZero())
		})
	})

	Context("with a custom victim finder", func() {
		var (
			mockCtrl     *gomock.Controller
			victimFinder *MockVictimFinder
			s            *Simulator
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			victimFinder = NewMockVictimFinder(mockCtrl)
			s = MakeBuilder().
				WithCacheByteSize(512).
				WithBlockSize(8).
				WithAssociativity(2).
				WithVictimFinder(victimFinder).
				MustBuild("SA")
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should install in the way the victim finder picks", func() {
			victimFinder.EXPECT().
				FindVictim(gomock.Any()).
				Return(1)

			result := s.Access(a)

			Expect(result.Way).To(Equal(1))
			Expect(s.Set(0)[1].Installed()).To(BeTrue())
			Expect(s.Set(0)[0].Installed()).To(BeFalse())
		})
	})
})
