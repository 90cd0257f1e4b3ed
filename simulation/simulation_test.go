package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
)

type sliceSource struct {
	accesses []trace.Access
	err      error
	next     int
}

func newSliceSource(addresses ...uint32) *sliceSource {
	s := &sliceSource{}
	for _, a := range addresses {
		s.accesses = append(s.accesses, trace.Access{Op: 'l', Address: a})
	}

	return s
}

func (s *sliceSource) Next() (trace.Access, error) {
	if s.next >= len(s.accesses) {
		if s.err != nil {
			return trace.Access{}, s.err
		}

		return trace.Access{}, io.EOF
	}

	a := s.accesses[s.next]
	s.next++

	return a, nil
}

func randomAddresses(n int, seed int64) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	addresses := make([]uint32, n)

	for i := range addresses {
		// Mostly a small working set, sometimes far away.
		if rng.Intn(4) == 0 {
			addresses[i] = rng.Uint32()
		} else {
			addresses[i] = uint32(rng.Intn(4096))
		}
	}

	return addresses
}

func registerComparison(s *Simulation) {
	for _, assoc := range []int{1, 2, 4, 64} {
		s.RegisterSimulator(cache.MakeBuilder().
			WithAssociativity(assoc).
			MustBuild(fmt.Sprintf("%d-way", assoc)))
	}
}

var _ = Describe("Simulation", func() {
	var (
		mockCtrl   *gomock.Controller
		simulation *Simulation
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		simulation = MakeBuilder().Build()
	})

	It("should register simulators", func() {
		dm := cache.MakeBuilder().MustBuild("DM")

		simulation.RegisterSimulator(dm)

		Expect(simulation.GetSimulatorByName("DM")).To(BeIdenticalTo(dm))
		Expect(simulation.GetSimulatorByName("none")).To(BeNil())
		Expect(simulation.Simulators()).To(HaveLen(1))
	})

	It("should panic on duplicated names", func() {
		simulation.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		Expect(func() {
			simulation.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))
		}).To(Panic())
	})

	It("should feed every simulator the same stream", func() {
		dm := cache.MakeBuilder().MustBuild("DM")
		fa := cache.MakeBuilder().WithAssociativity(64).MustBuild("FA")
		simulation.RegisterSimulator(dm)
		simulation.RegisterSimulator(fa)

		err := simulation.Run(context.Background(),
			newSliceSource(0x10, 0x10, 0x210, 0x10))

		Expect(err).NotTo(HaveOccurred())
		Expect(simulation.Accesses()).To(Equal(uint64(4)))

		reports := simulation.Summaries()
		Expect(reports[0].Hits).To(Equal(uint64(1)))
		Expect(reports[1].Hits).To(Equal(uint64(2)))
		Expect(reports[0].Accesses).To(Equal(uint64(4)))
		Expect(reports[1].Accesses).To(Equal(uint64(4)))
	})

	It("should read from a trace reader", func() {
		simulation.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		r := trace.NewReader(strings.NewReader("l 10 4\ns00000010 4\n"))
		err := simulation.Run(context.Background(), r)

		Expect(err).NotTo(HaveOccurred())
		Expect(simulation.Summaries()[0].HitRate).To(Equal(0.5))
	})

	It("should give the same results in parallel", func() {
		addresses := randomAddresses(10000, 1)

		sequential := MakeBuilder().Build()
		registerComparison(sequential)
		Expect(sequential.Run(context.Background(),
			newSliceSource(addresses...))).To(Succeed())

		parallel := MakeBuilder().WithParallel().WithBatchSize(7).Build()
		registerComparison(parallel)
		Expect(parallel.Run(context.Background(),
			newSliceSource(addresses...))).To(Succeed())

		Expect(parallel.Accesses()).To(Equal(sequential.Accesses()))
		Expect(parallel.Summaries()).To(Equal(sequential.Summaries()))
	})

	It("should stop when the context is cancelled", func() {
		simulation.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := simulation.Run(ctx, newSliceSource(0x10, 0x20))

		Expect(err).To(MatchError(context.Canceled))
		Expect(simulation.Accesses()).To(Equal(uint64(0)))
	})

	DescribeTable("source errors",
		func(b Builder) {
			s := b.Build()
			s.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

			source := newSliceSource(0x10, 0x10, 0x10)
			source.err = errors.New("broken trace")

			err := s.Run(context.Background(), source)

			Expect(err).To(MatchError("broken trace"))
			Expect(s.Accesses()).To(Equal(uint64(3)))
			Expect(s.Summaries()[0].Hits).To(Equal(uint64(2)))
		},
		Entry("sequential", MakeBuilder()),
		Entry("parallel", MakeBuilder().WithParallel().WithBatchSize(2)),
	)

	It("should log accesses and evictions", func() {
		var buf bytes.Buffer

		s := MakeBuilder().
			WithAccessLogger(log.New(&buf, "", 0)).
			Build()
		s.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		Expect(s.Run(context.Background(), newSliceSource(0x10, 0x210))).
			To(Succeed())

		Expect(buf.String()).To(Equal(
			"DM, miss, 0x00000010, 2, 0x0\n" +
				"DM, evict, 0x00000210, 2, 0x0\n" +
				"DM, miss, 0x00000210, 2, 0x1\n"))
	})

	It("should refuse to record accesses without a recorder", func() {
		Expect(func() {
			MakeBuilder().WithRecordAccesses().Build()
		}).To(Panic())
	})

	It("should refuse an empty batch", func() {
		Expect(func() {
			MakeBuilder().WithBatchSize(0).Build()
		}).To(Panic())
	})

	It("should record results on termination", func() {
		recorder := NewMockDataRecorder(mockCtrl)
		recorder.EXPECT().CreateTable(ResultTableName, ResultEntry{})

		s := MakeBuilder().WithDataRecorder(recorder).Build()
		s.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		Expect(s.Run(context.Background(), newSliceSource(0x10, 0x10))).
			To(Succeed())

		recorder.EXPECT().
			InsertData(ResultTableName, gomock.Any()).
			Do(func(_ string, entry any) {
				e := entry.(ResultEntry)
				Expect(e.Simulation).To(Equal(s.ID()))
				Expect(e.Name).To(Equal("DM"))
				Expect(e.Policy).To(Equal("direct-mapped"))
				Expect(e.Accesses).To(Equal(uint64(2)))
				Expect(e.Hits).To(Equal(uint64(1)))
				Expect(e.HitRate).To(Equal(0.5))
			})
		recorder.EXPECT().Close().Return(nil)

		Expect(s.Terminate()).To(Succeed())
	})

	It("should create the access table when recording accesses", func() {
		recorder := NewMockDataRecorder(mockCtrl)
		recorder.EXPECT().CreateTable(ResultTableName, gomock.Any())
		recorder.EXPECT().CreateTable(trace.AccessTableName, gomock.Any())
		recorder.EXPECT().InsertData(trace.AccessTableName, gomock.Any()).
			Times(3)

		s := MakeBuilder().
			WithDataRecorder(recorder).
			WithRecordAccesses().
			Build()
		s.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		Expect(s.Run(context.Background(), newSliceSource(1, 2, 3))).
			To(Succeed())
	})

	It("should register simulators and progress with the monitor", func() {
		monitor := monitoring.NewMonitor()
		s := MakeBuilder().WithMonitor(monitor).Build()
		s.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))

		Expect(s.GetMonitor()).To(BeIdenticalTo(monitor))
		Expect(func() {
			monitor.RegisterSimulator(cache.MakeBuilder().MustBuild("DM"))
		}).To(Panic())

		Expect(s.Run(context.Background(), newSliceSource(0x10))).
			To(Succeed())
		Expect(s.Summaries()[0].Accesses).To(Equal(uint64(1)))
	})
})
