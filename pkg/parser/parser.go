package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// DefaultMaxLineSize bounds a single line handed out by a LineReader.
const DefaultMaxLineSize = 16 * 1024 * 1024

// Record represents a single JSON object
type Record map[string]interface{}

// LineReader splits a stream into newline-delimited units, one per Next call.
// Both "\n" and "\r\n" endings are accepted. Lines holding only whitespace are not
// units and are skipped.
type LineReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	done    bool
}

// NewLineReader creates a reader over r. If r is an io.Closer it is closed by Close.
// maxLineSize <= 0 selects DefaultMaxLineSize.
func NewLineReader(r io.Reader, maxLineSize int) *LineReader {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	initial := 64 * 1024
	if initial > maxLineSize {
		initial = maxLineSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)

	lr := &LineReader{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		lr.closer = c
	}
	return lr
}

// Next returns the next line. The returned slice is only valid until the following
// call. hasMore is false once the stream is exhausted, and stays false.
func (r *LineReader) Next() (line []byte, hasMore bool, err error) {
	if r.done {
		return nil, false, nil
	}
	for r.scanner.Scan() {
		line = r.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, true, nil
	}
	r.done = true
	if err := r.scanner.Err(); err != nil {
		return nil, false, errors.Wrap(err, "failed to read line")
	}
	return nil, false, nil
}

// Close releases the underlying reader, if it can be closed. Calling Close more than
// once is safe.
func (r *LineReader) Close() error {
	r.done = true
	c := r.closer
	r.closer = nil
	if c == nil {
		return nil
	}
	return c.Close()
}

// DecodeJSON parses one unit as a JSON object. Arrays, scalars, null and trailing
// data after the object are errors. Numbers are kept as json.Number so they keep
// their exact literal.
func DecodeJSON(unit []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(unit))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON record")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("failed to parse JSON record: invalid data after top-level value")
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected JSON type: %s, expecting an object", jsonType(v))
	}
	return Record(m), nil
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}

// Output formats understood by Writer.
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
)

// Writer streams records either as JSON Lines or as a single JSON array, without
// holding them in memory.
type Writer struct {
	w      io.Writer
	format string
	pretty bool
	count  int
}

// NewWriter creates a Writer. format is FormatJSONL or FormatJSON.
func NewWriter(w io.Writer, format string, pretty bool) (*Writer, error) {
	switch format {
	case FormatJSONL, FormatJSON:
	case "":
		format = FormatJSONL
	default:
		return nil, errors.Errorf("unknown output format %q (json or jsonl)", format)
	}
	return &Writer{w: w, format: format, pretty: pretty}, nil
}

// Write emits one record.
func (wr *Writer) Write(rec Record) error {
	var (
		data []byte
		err  error
	)
	if wr.pretty {
		data, err = json.MarshalIndent(rec, prefix(wr.format), "  ")
	} else {
		data, err = json.Marshal(rec)
	}
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}

	var buf bytes.Buffer
	if wr.format == FormatJSON {
		if wr.count == 0 {
			buf.WriteByte('[')
		} else {
			buf.WriteByte(',')
		}
		if wr.pretty {
			buf.WriteString("\n  ")
		}
	}
	buf.Write(data)
	if wr.format == FormatJSONL {
		buf.WriteByte('\n')
	}
	wr.count++
	_, err = wr.w.Write(buf.Bytes())
	return err
}

// Count returns the number of records written so far.
func (wr *Writer) Count() int {
	return wr.count
}

// Close terminates the output. For JSON it closes the array ("[]" when nothing
// was written).
func (wr *Writer) Close() error {
	if wr.format != FormatJSON {
		return nil
	}
	var err error
	switch {
	case wr.count == 0:
		_, err = io.WriteString(wr.w, "[]\n")
	case wr.pretty:
		_, err = io.WriteString(wr.w, "\n]\n")
	default:
		_, err = io.WriteString(wr.w, "]\n")
	}
	return err
}

func prefix(format string) string {
	if format == FormatJSON {
		return "  "
	}
	return ""
}
