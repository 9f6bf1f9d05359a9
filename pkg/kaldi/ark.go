package kaldi

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Entry is one keyed matrix of an archive
type Entry struct {
	Key    string
	Matrix [][]float64
}

// maxMatrixElements caps rows*cols of one binary matrix
const maxMatrixElements = 1 << 28

// ArkReader decodes a Kaldi archive of matrices. Binary float and double
// matrices and text matrices are supported.
type ArkReader struct {
	r *bufio.Reader
}

func NewArkReader(r io.Reader) *ArkReader {
	return &ArkReader{r: bufio.NewReader(r)}
}

// ReadArk decodes every entry of an archive
func ReadArk(r io.Reader) ([]Entry, error) {
	ar := NewArkReader(r)
	var entries []Entry
	for {
		entry, err := ar.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, *entry)
	}
}

// Next returns the next entry or io.EOF at the end of the archive
func (ar *ArkReader) Next() (*Entry, error) {
	if err := ar.skipSpace(); err != nil {
		return nil, err
	}

	key, err := ar.r.ReadString(' ')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, formatError("unexpected end of archive after key %q", key)
		}
		return nil, err
	}
	key = strings.TrimSuffix(key, " ")

	header, err := ar.r.Peek(2)
	if err != nil {
		return nil, formatError("missing object for key %q", key)
	}

	var m [][]float64
	if header[0] == 0 && header[1] == 'B' {
		ar.r.Discard(2)
		m, err = ar.readBinaryMatrix()
	} else {
		m, err = ar.readTextMatrix()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix %q: %w", key, err)
	}

	return &Entry{Key: key, Matrix: m}, nil
}

func (ar *ArkReader) skipSpace() error {
	for {
		b, err := ar.r.ReadByte()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\n' && b != '\t' && b != '\r' {
			return ar.r.UnreadByte()
		}
	}
}

func (ar *ArkReader) readBinaryMatrix() ([][]float64, error) {
	token, err := ar.r.ReadString(' ')
	if err != nil {
		return nil, formatError("truncated binary header")
	}

	var elemSize int
	switch token {
	case "FM ":
		elemSize = 4
	case "DM ":
		elemSize = 8
	case "CM ", "CM2 ", "CM3 ":
		return nil, NewError(ErrCodeUnsupportedFormat, "", "compressed matrices are not supported", nil)
	default:
		return nil, NewError(ErrCodeUnsupportedFormat, "", fmt.Sprintf("unsupported object type %q", strings.TrimSpace(token)), nil)
	}

	rows, err := ar.readInt32()
	if err != nil {
		return nil, err
	}
	cols, err := ar.readInt32()
	if err != nil {
		return nil, err
	}
	if rows < 0 || cols < 0 {
		return nil, formatError("negative matrix dimensions %dx%d", rows, cols)
	}
	if (rows == 0) != (cols == 0) {
		return nil, formatError("invalid matrix dimensions %dx%d", rows, cols)
	}
	if int64(rows)*int64(cols) > maxMatrixElements {
		return nil, formatError("matrix dimensions %dx%d exceed %d elements", rows, cols, maxMatrixElements)
	}

	// rows are allocated as they arrive so a bogus header cannot force a
	// large allocation before the data runs out
	buf := make([]byte, int(cols)*elemSize)
	m := make([][]float64, 0, min(int(rows), 1024))
	for i := range int(rows) {
		if _, err := io.ReadFull(ar.r, buf); err != nil {
			return nil, formatError("truncated matrix data at row %d", i)
		}
		row := make([]float64, cols)
		for j := range row {
			if elemSize == 4 {
				row[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:])))
			} else {
				row[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[j*8:]))
			}
		}
		m = append(m, row)
	}
	return m, nil
}

// readInt32 reads Kaldi's size-prefixed integer
func (ar *ArkReader) readInt32() (int32, error) {
	size, err := ar.r.ReadByte()
	if err != nil {
		return 0, formatError("truncated integer")
	}
	if size != 4 {
		return 0, formatError("expected 4 byte integer, got size %d", size)
	}
	var v int32
	if err := binary.Read(ar.r, binary.LittleEndian, &v); err != nil {
		return 0, formatError("truncated integer")
	}
	return v, nil
}

func (ar *ArkReader) readTextMatrix() ([][]float64, error) {
	if err := ar.skipSpace(); err != nil {
		return nil, formatError("missing text matrix")
	}
	open, err := ar.r.ReadByte()
	if err != nil || open != '[' {
		return nil, formatError("text matrix must start with '['")
	}

	body, err := ar.r.ReadString(']')
	if err != nil {
		return nil, formatError("unterminated text matrix")
	}
	body = strings.TrimSuffix(body, "]")

	m := [][]float64{}
	cols := -1
	for line := range strings.SplitSeq(body, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if cols >= 0 && len(fields) != cols {
			return nil, formatError("row %d has %d columns, expected %d", len(m), len(fields), cols)
		}
		cols = len(fields)

		row := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, formatError("invalid number %q", f)
			}
			row[j] = v
		}
		m = append(m, row)
	}
	return m, nil
}

// WriteMatrix appends one binary float matrix entry to an archive
func WriteMatrix(w io.Writer, key string, m [][]float64) error {
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return formatError("invalid archive key %q", key)
	}

	rows := len(m)
	cols := 0
	if rows > 0 {
		cols = len(m[0])
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(key)
	bw.WriteString(" \x00BFM ")
	writeInt32(bw, int32(rows))
	writeInt32(bw, int32(cols))

	buf := make([]byte, 4)
	for i, row := range m {
		if len(row) != cols {
			return formatError("row %d has %d columns, expected %d", i, len(row), cols)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
			bw.Write(buf)
		}
	}
	return bw.Flush()
}

// WriteTextMatrix appends one text matrix entry to an archive
func WriteTextMatrix(w io.Writer, key string, m [][]float64) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(key)
	bw.WriteString("  [")
	if len(m) == 0 {
		bw.WriteString(" ]\n")
		return bw.Flush()
	}
	for i, row := range m {
		bw.WriteString("\n ")
		for _, v := range row {
			bw.WriteString(" ")
			bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		if i == len(m)-1 {
			bw.WriteString(" ]")
		}
	}
	bw.WriteString("\n")
	return bw.Flush()
}

func writeInt32(w *bufio.Writer, v int32) {
	w.WriteByte(4)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	w.Write(buf[:])
}

func formatError(format string, args ...any) *Error {
	return NewError(ErrCodeInvalidFormat, "", fmt.Sprintf(format, args...), nil)
}
