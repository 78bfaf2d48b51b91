// Package protocol defines the chat wire format: length-prefixed JSON frames.
//
// Every frame is a 4-byte big-endian unsigned length followed by that many
// bytes of JSON. A zero-length payload is legal and decodes to an empty
// record. The codec does no buffering beyond assembling one frame and blocks
// the caller until the frame is complete or the stream ends.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrame is the maximum payload size (64KB). Frames above this are refused
// on both read and write.
const MaxFrame = 65536

var (
	// ErrTruncated reports a stream that closed mid-header or mid-body.
	ErrTruncated = errors.New("protocol: truncated frame")

	// ErrMalformed reports a complete frame whose payload is not valid JSON.
	ErrMalformed = errors.New("protocol: malformed frame")

	// ErrFrameTooLarge reports a frame exceeding MaxFrame.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// Marshal serializes a message payload without the length prefix.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	if len(data) > MaxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	return data, nil
}

// EncodeFrame serializes a message as one complete frame: length prefix
// followed by the JSON payload.
func EncodeFrame(v any) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	return buf, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return WriteRawFrame(w, data)
}

// WriteRawFrame writes an already-serialized payload as one frame.
func WriteRawFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("protocol: write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns its payload.
//
// A clean end of stream before any header byte returns io.EOF. A stream that
// closes mid-header or mid-body returns ErrTruncated. Length validation
// happens here; payload parsing is left to the Decode helpers.
func ReadFrame(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}
	length := binary.BigEndian.Uint32(lenBuf)
	if length > MaxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrTruncated, err)
	}
	return payload, nil
}

// decode unmarshals a payload into v. An empty payload is the empty record.
func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
