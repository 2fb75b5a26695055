package stimuli

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hcistim/hci"
)

// constSource always draws the same value, reduced into range.
type constSource struct {
	v int
}

func (s constSource) IntN(n int) int {
	return s.v % n
}

// scriptedSource replays a fixed list of draws, then zeroes.
type scriptedSource struct {
	draws []int
}

func (s *scriptedSource) IntN(n int) int {
	if len(s.draws) == 0 {
		return 0
	}

	v := s.draws[0] % n
	s.draws = s.draws[1:]

	return v
}

var _ = Describe("Generator", func() {
	var (
		mockCtrl *gomock.Controller
		writer   *MockTransactionWriter
		txns     []Transaction
		rsv      *ReservationTable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		writer = NewMockTransactionWriter(mockCtrl)
		txns = nil
		writer.EXPECT().
			WriteTransaction(gomock.Any()).
			Do(func(t Transaction) { txns = append(txns, t) }).
			AnyTimes()
		writer.EXPECT().Flush().AnyTimes()
		rsv = NewReservationTable()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	baseBuilder := func() Builder {
		return MakeBuilder().
			WithTotalBytes(32000).
			WithWordBytes(4).
			WithDataWidth(32).
			WithTestCount(3).
			WithCycleOffset(5)
	}

	addresses := func() []uint64 {
		addrs := make([]uint64, 0, len(txns))
		for _, t := range txns {
			addrs = append(addrs, t.Address)
		}

		return addrs
	}

	Context("random pattern", func() {
		It("should emit aligned, in-range, contiguously numbered transactions", func() {
			g := baseBuilder().
				WithTestCount(50).
				WithRandomSource(NewMathSource(1)).
				WithWriter(writer).
				Build("master_log_0")

			nextID, err := g.GenerateRandom(0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(50)))
			Expect(txns).To(HaveLen(50))

			for i, t := range txns {
				Expect(t.ID).To(Equal(uint64(i)))
				Expect(t.Address).To(BeNumerically("<", 32000))
				Expect(t.Address % 4).To(Equal(uint64(0)))
				Expect(t.CycleOffset).To(BeNumerically(">=", 1))
				Expect(t.CycleOffset).To(BeNumerically("<=", 5))
				Expect(t.Data.Sign()).To(BeNumerically(">=", 0))
				Expect(t.Data.BitLen()).To(BeNumerically("<=", 32))
			}
		})

		It("should reserve the address of every accepted write", func() {
			g := baseBuilder().
				WithTestCount(50).
				WithRandomSource(NewMathSource(7)).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateRandom(0, rsv)

			Expect(err).ToNot(HaveOccurred())
			for _, t := range txns {
				if t.IsWrite() {
					Expect(rsv.Contains(AccessWrite, t.Address)).To(BeTrue())
				}
			}
			Expect(rsv.Count(AccessRead)).To(Equal(0))
		})

		It("should redraw a write address already reserved", func() {
			rsv.Reserve(AccessWrite, 0)
			rsv.Reserve(AccessWrite, 4)

			// Draw order: data (one 8-bit chunk), wen, offset, then address
			// words 0 and 1 (both reserved) before word 3 is free.
			src := &scriptedSource{draws: []int{0, 0, 0, 0, 1, 3}}

			g := baseBuilder().
				WithTotalBytes(16).
				WithDataWidth(8).
				WithTestCount(1).
				WithRandomSource(src).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateRandom(0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(addresses()).To(Equal([]uint64{12}))
		})

		It("should fail with a bounded retry once the space is exhausted", func() {
			for _, addr := range []uint64{0, 4, 8, 12} {
				rsv.Reserve(AccessWrite, addr)
			}

			g := baseBuilder().
				WithTotalBytes(16).
				WithDataWidth(8).
				WithTestCount(1).
				WithRetryLimit(3).
				WithRandomSource(constSource{0}).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateRandom(0, rsv)

			Expect(err).To(MatchError(ErrAddressSpaceExhausted))
		})
	})

	Context("linear pattern", func() {
		It("should advance by stride0 words per transaction", func() {
			g := baseBuilder().
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			nextID, err := g.GenerateLinear(2, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(3)))
			Expect(addresses()).To(Equal([]uint64{0, 8, 16}))
		})

		It("should wrap modulo the memory size", func() {
			g := baseBuilder().
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateLinear(2, 31996, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(addresses()).To(Equal([]uint64{31996, 4, 12}))
		})

		It("should wrap negative strides into range", func() {
			g := baseBuilder().
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateLinear(-1, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(addresses()).To(Equal([]uint64{0, 31996, 31992}))
		})

		It("should honor a pre-seeded read reservation while the walk advances", func() {
			// Generators never populate the read set themselves; it is
			// checked all the same when the composition layer seeds it.
			rsv.Reserve(AccessRead, 0)

			g := baseBuilder().
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateLinear(2, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(addresses()).To(Equal([]uint64{8, 16, 24}))
		})

		It("should make a later writer skip the addresses an earlier one claimed", func() {
			g := baseBuilder().
				WithRandomSource(constSource{0}).
				WithWriter(writer).
				Build("master_log_0")

			nextID, err := g.GenerateLinear(1, 0, 0, rsv)
			Expect(err).ToNot(HaveOccurred())
			Expect(addresses()).To(Equal([]uint64{0, 4, 8}))
			Expect(rsv.Count(AccessWrite)).To(Equal(3))

			g2 := baseBuilder().
				WithRandomSource(constSource{0}).
				WithWriter(writer).
				Build("master_log_1")

			nextID, err = g2.GenerateLinear(1, 0, nextID, rsv)
			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(6)))
			Expect(addresses()[3:]).To(Equal([]uint64{12, 16, 20}))
		})
	})

	Context("2D pattern", func() {
		It("should sweep i fastest and truncate mid-row at the test count", func() {
			g := baseBuilder().
				WithTestCount(4).
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			nextID, err := g.Generate2D(1, 3, 2, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(4)))
			// j=0: i=0,1,2 -> 0,4,8; j=1: i=0 -> 8.
			Expect(addresses()).To(Equal([]uint64{0, 4, 8, 8}))
		})

		It("should skip reserved grid points without consuming an ID", func() {
			rsv.Reserve(AccessRead, 4)

			g := baseBuilder().
				WithTestCount(4).
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			nextID, err := g.Generate2D(1, 3, 2, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(4)))
			Expect(addresses()).To(Equal([]uint64{0, 8, 8, 12}))

			for i, t := range txns {
				Expect(t.ID).To(Equal(uint64(i)))
			}
		})
	})

	Context("3D pattern", func() {
		It("should nest k outermost, j middle, i innermost", func() {
			g := baseBuilder().
				WithTestCount(5).
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_hwpe_0")

			nextID, err := g.Generate3D(1, 2, 2, 2, 4, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(5)))
			// k=0: j=0: 0,4; j=1: 8,12; k=1: j=0: 16.
			Expect(addresses()).To(Equal([]uint64{0, 4, 8, 12, 16}))
		})
	})

	Context("cycle offsets", func() {
		It("should draw uniformly from [1, offset] by default", func() {
			g := baseBuilder().
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateLinear(1, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			for _, t := range txns {
				Expect(t.CycleOffset).To(Equal(2))
			}
		})

		It("should use the configured offset exactly in exact mode", func() {
			g := baseBuilder().
				WithExactOffset(true).
				WithRandomSource(constSource{1}).
				WithWriter(writer).
				Build("master_log_0")

			_, err := g.GenerateLinear(1, 0, 0, rsv)

			Expect(err).ToNot(HaveOccurred())
			for _, t := range txns {
				Expect(t.CycleOffset).To(Equal(5))
			}
		})
	})

	Context("dispatch", func() {
		It("should thread the starting ID through Generate", func() {
			g := baseBuilder().
				WithRandomSource(NewMathSource(3)).
				WithWriter(writer).
				Build("master_log_0")

			nextID, err := g.Generate(
				hci.Pattern{Kind: hci.PatternRandom}, 7, rsv)

			Expect(err).ToNot(HaveOccurred())
			Expect(nextID).To(Equal(uint64(10)))
			Expect(txns[0].ID).To(Equal(uint64(7)))
		})
	})

	Context("builder", func() {
		It("should panic when built without a writer", func() {
			Expect(func() {
				baseBuilder().
					WithRandomSource(constSource{0}).
					Build("master_log_0")
			}).To(Panic())
		})

		It("should panic when built without a random source", func() {
			Expect(func() {
				baseBuilder().
					WithWriter(writer).
					Build("master_log_0")
			}).To(Panic())
		})
	})
})
