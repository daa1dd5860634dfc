package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MaxLineBytes bounds a single physical line. Real records run well under
// a megabyte even for exhaustive traceroutes, so the cap sits far above
// them; it only stops a newline-less garbage file from making the scanner
// buffer without limit.
const MaxLineBytes = 64 << 20

// ErrTruncated reports input that ended in the middle of a JSON value.
var ErrTruncated = errors.New("input ended with incomplete record")

// ParseResult holds the records parsed from one file.
type ParseResult struct {
	Records []Record
	// MultiLine is true when any record spanned more than one physical
	// line. Reassembling spread-out records costs repeated decode
	// attempts, so callers surface this as an advisory.
	MultiLine bool
}

// Parse reads logical lines and decodes each accumulated buffer as one JSON
// object. When the decoder reports that the buffer ended before the object
// closed, the next physical line is appended and the decode retried. Any
// other decode error fails the whole input immediately: a single malformed
// record invalidates the file, which stays at its original path for
// inspection. Input ending with a non-empty incomplete buffer fails with
// ErrTruncated.
func Parse(r io.Reader) (ParseResult, error) {
	var res ParseResult

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	var buf []byte
	startLine := 0
	spanned := 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(buf) == 0 {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			buf = append(buf, line...)
			startLine = lineNo
			spanned = 1
		} else {
			buf = append(buf, '\n')
			buf = append(buf, line...)
			spanned++
		}

		rec, err := decodeRecord(buf)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				// Record continues on the next line.
				continue
			}
			return res, fmt.Errorf("record starting at line %d: %w", startLine, err)
		}

		if spanned > 1 {
			res.MultiLine = true
		}
		res.Records = append(res.Records, rec)
		buf = buf[:0]
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read input: %w", err)
	}
	if len(buf) > 0 {
		return res, fmt.Errorf("record starting at line %d: %w", startLine, ErrTruncated)
	}

	return res, nil
}

// decodeRecord decodes exactly one JSON object from data, preserving
// top-level field order via the decoder's token stream. Truncated input
// surfaces as io.ErrUnexpectedEOF when cut inside a token and as bare
// io.EOF when cut between tokens; the caller treats both as incomplete
// and extends the buffer. A complete object never yields either, so the
// two errors are an unambiguous continuation signal.
func decodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Record{}, fmt.Errorf("record is not a JSON object (starts with %v)", tok)
	}

	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Record{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Record{}, fmt.Errorf("unexpected token %v for field name", keyTok)
		}

		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return Record{}, err
		}

		// A repeated key overwrites the earlier value in place, keeping
		// the first occurrence's position.
		replaced := false
		for i := range fields {
			if fields[i].Name == key {
				fields[i].Value = normalize(val)
				replaced = true
				break
			}
		}
		if !replaced {
			fields = append(fields, Field{Name: key, Value: normalize(val)})
		}
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, err
	}
	if dec.More() {
		return Record{}, fmt.Errorf("trailing data after record on the same line")
	}

	return Record{fields: fields}, nil
}

// normalize converts json.Number values to int64 when integral, float64
// otherwise, recursing into nested objects and arrays. The sinks depend on
// integral values staying integral.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	case map[string]interface{}:
		for k, vv := range t {
			t[k] = normalize(vv)
		}
		return t
	case []interface{}:
		for i, vv := range t {
			t[i] = normalize(vv)
		}
		return t
	default:
		return v
	}
}
