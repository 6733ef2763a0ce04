package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// ErrMalformedRecord is returned by Decoder.Next for lines which aren't valid JSON
var ErrMalformedRecord = errors.New("malformed record")

// default scanner buffer maxCapacity is 64K, tweets with extended entities
// can be bigger
const maxRecordSize = 1024 * 1024

// Decoder reads one tweet per line. Blank lines are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a Decoder reading from _r_
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next tweet, or io.EOF once the stream is exhausted.
// A malformed line yields an error wrapping ErrMalformedRecord; decoding may
// continue with the following line.
func (d *Decoder) Next() (*Tweet, error) {
	for d.scanner.Scan() {
		d.line++
		record := bytes.TrimSpace(d.scanner.Bytes())
		if len(record) == 0 {
			continue
		}
		if !gjson.ValidBytes(record) {
			return nil, fmt.Errorf("dgimstat: line %d: %w", d.line, ErrMalformedRecord)
		}
		return ParseTweet(record), nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("dgimstat: reading line %d: %w", d.line+1, err)
	}
	return nil, io.EOF
}

// Line returns the number of the last line read
func (d *Decoder) Line() int {
	return d.line
}
