// Package trace reads memory access traces and records what a cache does with
// each access.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Operation is the raw operation character of a trace line.
type Operation byte

// IsLoad tells if the operation reads memory.
func (o Operation) IsLoad() bool {
	switch o {
	case 'l', 'L', 'r', 'R':
		return true
	}

	return false
}

// IsStore tells if the operation writes memory.
func (o Operation) IsStore() bool {
	switch o {
	case 's', 'S', 'w', 'W':
		return true
	}

	return false
}

func (o Operation) String() string {
	return string(rune(o))
}

// Access is one record of a trace.
type Access struct {
	Op      Operation
	Address uint32
	Size    int
}

// A Source supplies accesses in trace order. Next returns io.EOF after the
// last access.
type Source interface {
	Next() (Access, error)
}

// ErrMalformedLine is wrapped by every ParseError.
var ErrMalformedLine = errors.New("malformed trace line")

// ParseError reports a line that does not have a recognized shape.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const joinedAddressDigits = 8

// ParseLine converts one trace line into an access. The returned bool is false
// for blank lines and comments, which carry no access.
//
// Two shapes are accepted:
//
//	<op> <hex-address> [<size>]
//	<op><8 hex digits> [<size> ...]
func ParseLine(text string) (Access, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "#") {
		return Access{}, false, nil
	}

	fields := strings.Fields(text)

	if len(fields[0]) == 1 {
		return parseSeparated(fields)
	}

	return parseJoined(fields)
}

func parseSeparated(fields []string) (Access, bool, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return Access{}, false,
			fmt.Errorf("%w: expected <op> <address> [<size>]",
				ErrMalformedLine)
	}

	access := Access{Op: Operation(fields[0][0])}

	address, err := parseAddress(fields[1])
	if err != nil {
		return Access{}, false, err
	}

	access.Address = address

	if len(fields) == 3 {
		access.Size, err = parseSize(fields[2])
		if err != nil {
			return Access{}, false, err
		}
	}

	return access, true, nil
}

func parseJoined(fields []string) (Access, bool, error) {
	head := fields[0]
	if len(head) != joinedAddressDigits+1 {
		return Access{}, false,
			fmt.Errorf("%w: expected <op><%d hex digits>",
				ErrMalformedLine, joinedAddressDigits)
	}

	access := Access{Op: Operation(head[0])}

	address, err := parseAddress(head[1:])
	if err != nil {
		return Access{}, false, err
	}

	access.Address = address

	if len(fields) > 1 {
		access.Size, err = parseSize(fields[1])
		if err != nil {
			return Access{}, false, err
		}
	}

	return access, true, nil
}

func parseAddress(s string) (uint32, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	address, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad address %q", ErrMalformedLine, s)
	}

	return uint32(address), nil
}

func parseSize(s string) (int, error) {
	size, err := strconv.Atoi(s)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("%w: bad size %q", ErrMalformedLine, s)
	}

	return size, nil
}

const maxLineLength = 1 << 20

// A Reader parses a trace from an io.Reader.
type Reader struct {
	scanner       *bufio.Scanner
	skipMalformed bool

	line      int
	skipped   int
	bytesRead int64
}

// NewReader creates a reader that fails on the first malformed line.
func NewReader(r io.Reader) *Reader {
	reader := &Reader{scanner: bufio.NewScanner(r)}
	reader.scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	reader.scanner.Split(reader.scanLine)

	return reader
}

// scanLine splits like bufio.ScanLines and counts every byte it consumes,
// line terminators included.
func (r *Reader) scanLine(
	data []byte,
	atEOF bool,
) (advance int, token []byte, err error) {
	advance, token, err = bufio.ScanLines(data, atEOF)
	r.bytesRead += int64(advance)

	return advance, token, err
}

// WithSkipMalformed makes the reader count and skip malformed lines instead of
// failing on them.
func (r *Reader) WithSkipMalformed() *Reader {
	r.skipMalformed = true
	return r
}

// Next returns the next access, or io.EOF when the trace is exhausted.
func (r *Reader) Next() (Access, error) {
	for r.scanner.Scan() {
		text := r.scanner.Text()
		r.line++

		access, ok, err := ParseLine(text)
		if err != nil {
			if r.skipMalformed {
				r.skipped++
				continue
			}

			return Access{}, &ParseError{Line: r.line, Text: text, Err: err}
		}

		if !ok {
			continue
		}

		return access, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Access{}, fmt.Errorf("read trace: %w", err)
	}

	return Access{}, io.EOF
}

// Skipped returns the number of malformed lines skipped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// BytesRead returns the number of bytes consumed so far.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead
}

// A File is a Reader over a trace file on disk.
type File struct {
	*Reader

	file *os.File
	size int64
}

// Open opens a trace file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open trace: %w", err)
	}

	return &File{
		Reader: NewReader(f),
		file:   f,
		size:   info.Size(),
	}, nil
}

// Size returns the size of the file in bytes.
func (f *File) Size() int64 {
	return f.size
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.file.Close()
}
