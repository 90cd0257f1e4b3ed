package trace

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func readAll(r *Reader) ([]Access, error) {
	var accesses []Access

	for {
		access, err := r.Next()
		if errors.Is(err, io.EOF) {
			return accesses, nil
		}

		if err != nil {
			return accesses, err
		}

		accesses = append(accesses, access)
	}
}

var _ = Describe("ParseLine", func() {
	DescribeTable("accepted lines",
		func(text string, expected Access) {
			access, ok, err := ParseLine(text)

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(access).To(Equal(expected))
		},
		Entry("separated with size", "l 7fffed80 4",
			Access{Op: 'l', Address: 0x7fffed80, Size: 4}),
		Entry("separated with 0x prefix", "s 0x10 8",
			Access{Op: 's', Address: 0x10, Size: 8}),
		Entry("separated without size", "l 1f",
			Access{Op: 'l', Address: 0x1f}),
		Entry("surrounding whitespace", "  l\t10   2  ",
			Access{Op: 'l', Address: 0x10, Size: 2}),
		Entry("joined", "l7fffed80",
			Access{Op: 'l', Address: 0x7fffed80}),
		Entry("joined with size", "s00000010 4",
			Access{Op: 's', Address: 0x10, Size: 4}),
		Entry("joined with trailing fields", "s00000010 4 extra",
			Access{Op: 's', Address: 0x10, Size: 4}),
	)

	It("should decode both shapes to the same record", func() {
		separated, _, err := ParseLine("l 0001a2b3 4")
		Expect(err).NotTo(HaveOccurred())

		joined, _, err := ParseLine("l0001a2b3 4")
		Expect(err).NotTo(HaveOccurred())

		Expect(joined).To(Equal(separated))
	})

	DescribeTable("lines without an access",
		func(text string) {
			_, ok, err := ParseLine(text)

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		},
		Entry("empty", ""),
		Entry("blank", "   \t"),
		Entry("comment", "# generated by pin"),
	)

	DescribeTable("malformed lines",
		func(text string) {
			_, _, err := ParseLine(text)

			Expect(err).To(MatchError(ErrMalformedLine))
		},
		Entry("missing address", "l"),
		Entry("bad hex", "l zz 4"),
		Entry("address too wide", "l 100000000 4"),
		Entry("bad size", "l 10 four"),
		Entry("negative size", "l 10 -4"),
		Entry("too many fields", "l 10 4 4"),
		Entry("short joined address", "l1234"),
		Entry("bad joined address", "l0000zz10"),
	)
})

var _ = Describe("Operation", func() {
	It("should classify loads and stores", func() {
		Expect(Operation('l').IsLoad()).To(BeTrue())
		Expect(Operation('r').IsLoad()).To(BeTrue())
		Expect(Operation('s').IsStore()).To(BeTrue())
		Expect(Operation('w').IsStore()).To(BeTrue())
		Expect(Operation('l').IsStore()).To(BeFalse())
		Expect(Operation('x').IsLoad()).To(BeFalse())
		Expect(Operation('s').String()).To(Equal("s"))
	})
})

var _ = Describe("Reader", func() {
	It("should read accesses in order", func() {
		r := NewReader(strings.NewReader(
			"# header\nl 10 4\n\ns00000020 8\nl 0x30\n"))

		accesses, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(accesses).To(Equal([]Access{
			{Op: 'l', Address: 0x10, Size: 4},
			{Op: 's', Address: 0x20, Size: 8},
			{Op: 'l', Address: 0x30},
		}))
		Expect(r.Line()).To(Equal(5))
		Expect(r.BytesRead()).To(Equal(int64(36)))
	})

	It("should count every byte of CRLF and unterminated lines", func() {
		content := "l 10 4\r\n# note\r\ns00000020 8"
		r := NewReader(strings.NewReader(content))

		accesses, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(accesses).To(HaveLen(2))
		Expect(r.BytesRead()).To(Equal(int64(len(content))))
	})

	It("should return io.EOF on empty input", func() {
		r := NewReader(strings.NewReader(""))

		_, err := r.Next()

		Expect(err).To(Equal(io.EOF))
	})

	It("should report the line of a malformed access", func() {
		r := NewReader(strings.NewReader("l 10 4\nbogus line\nl 20 4\n"))

		_, err := r.Next()
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Next()

		var parseErr *ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
		Expect(parseErr.Line).To(Equal(2))
		Expect(parseErr.Text).To(Equal("bogus line"))
		Expect(err).To(MatchError(ErrMalformedLine))
	})

	It("should skip malformed lines if asked", func() {
		r := NewReader(strings.NewReader("l 10 4\nbogus line\nl 20 4\n")).
			WithSkipMalformed()

		accesses, err := readAll(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(accesses).To(HaveLen(2))
		Expect(r.Skipped()).To(Equal(1))
	})
})

var _ = Describe("File", func() {
	It("should open a trace file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "small.trace")
		content := "l 10 4\nl 10 4\n"
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		f, err := Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		Expect(f.Size()).To(Equal(int64(len(content))))

		accesses, err := readAll(f.Reader)
		Expect(err).NotTo(HaveOccurred())
		Expect(accesses).To(HaveLen(2))
		Expect(f.BytesRead()).To(Equal(f.Size()))
	})

	It("should fail on a missing file", func() {
		_, err := Open(filepath.Join(GinkgoT().TempDir(), "missing.trace"))

		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
