// Package recordio provides the length-and-checksum-prefixed record
// framing OptimisticTxn uses to serialize staged records into a data file
// (spec §4.10 marks the record writer out-of-scope for wire-format
// compatibility; only the framing discipline is load-bearing here).
package recordio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

var crc32Table = crc32.MakeTable(crc32.IEEE)

// Writer accumulates records into a single in-memory buffer, each framed
// as a 4-byte little-endian length, a 4-byte little-endian CRC32
// checksum, and the record bytes.
type Writer struct {
	buf   bytes.Buffer
	count int
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteRecord appends record to the buffer.
func (w *Writer) WriteRecord(record []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(record)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.Checksum(record, crc32Table))
	if _, err := w.buf.Write(header[:]); err != nil {
		return fmt.Errorf("recordio: failed to write record header: %w", err)
	}
	if _, err := w.buf.Write(record); err != nil {
		return fmt.Errorf("recordio: failed to write record body: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Bytes returns the accumulated framed byte stream.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// ReadAll parses a framed byte stream back into its constituent records,
// verifying each checksum.
func ReadAll(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	var records [][]byte
	for {
		var header [8]byte
		_, err := io.ReadFull(r, header[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recordio: truncated record header: %w", err)
		}
		length := binary.LittleEndian.Uint32(header[0:4])
		wantChecksum := binary.LittleEndian.Uint32(header[4:8])

		record := make([]byte, length)
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("recordio: truncated record body: %w", err)
		}
		if got := crc32.Checksum(record, crc32Table); got != wantChecksum {
			return nil, fmt.Errorf("recordio: checksum mismatch: got %d want %d", got, wantChecksum)
		}
		records = append(records, record)
	}
	return records, nil
}
