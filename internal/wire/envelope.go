// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package wire implements the length-and-CRC framed binary envelope that
// carries Command payloads between a collector and the receiver.
//
// Frame layout (big-endian throughout):
//
//	bytes  0..16   timestamp_us (u128, wall-clock microseconds since the Unix epoch)
//	bytes 16..18   version (u16, currently 1)
//	bytes 18..22   payload_len (u32)
//	bytes 22..22+N payload (JSON-encoded Command, N = payload_len)
//	bytes last 4   crc32 (IEEE) of the payload only
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

// Version is the only envelope version this implementation emits or accepts.
const Version uint16 = 1

const (
	timestampSize = 16
	versionSize   = 2
	lengthSize    = 4
	crcSize       = 4
	headerSize    = timestampSize + versionSize + lengthSize
	// MinFrameSize is the smallest legal frame: an empty payload.
	MinFrameSize = headerSize + crcSize
)

var (
	// ErrUnsupportedVersion is returned when a frame's version field isn't Version.
	ErrUnsupportedVersion = errors.New("wire: unsupported envelope version")
	// ErrTruncated is returned when fewer bytes are available than the frame claims to need.
	ErrTruncated = errors.New("wire: truncated frame")
	// ErrBadCRC is returned when the payload's computed CRC32 doesn't match the trailer.
	ErrBadCRC = errors.New("wire: crc mismatch")
	// ErrBadPayload is returned when the payload doesn't decode as a known Command.
	ErrBadPayload = errors.New("wire: malformed payload")
)

// nowMicros is overridden in tests that need deterministic timestamps.
var nowMicros = func() uint64 {
	return uint64(time.Now().UnixMicro())
}

// Encode frames cmd for transmission, stamping it with the current wall
// clock in microseconds.
func Encode(cmd Command) ([]byte, error) {
	return EncodeAt(nowMicros(), cmd)
}

// EncodeAt frames cmd with an explicit timestamp_us, for callers (and
// tests) that need control over the stamped time.
func EncodeAt(timestampUs uint64, cmd Command) ([]byte, error) {
	payload, err := marshalCommand(cmd)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, headerSize+len(payload)+crcSize)
	// The top 8 bytes of the 128-bit timestamp field are reserved; this
	// implementation only ever produces values that fit in a uint64.
	binary.BigEndian.PutUint64(buf[8:16], timestampUs)
	binary.BigEndian.PutUint16(buf[16:18], Version)
	binary.BigEndian.PutUint32(buf[18:22], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	crc := crc32.ChecksumIEEE(payload)
	binary.BigEndian.PutUint32(buf[headerSize+len(payload):], crc)
	return buf, nil
}

// Decode parses a complete frame out of b. It returns ErrTruncated if b is
// shorter than the frame it describes; callers reading from a stream should
// treat ErrTruncated as "need more bytes", not as a protocol violation.
func Decode(b []byte) (timestampUs uint64, cmd Command, err error) {
	if len(b) < MinFrameSize {
		return 0, nil, ErrTruncated
	}

	timestampUs = binary.BigEndian.Uint64(b[8:16])
	version := binary.BigEndian.Uint16(b[16:18])
	if version != Version {
		return 0, nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, Version)
	}

	payloadLen := binary.BigEndian.Uint32(b[18:22])
	frameLen := headerSize + int(payloadLen) + crcSize
	if frameLen < headerSize || len(b) < frameLen {
		return 0, nil, ErrTruncated
	}

	payload := b[headerSize : headerSize+int(payloadLen)]
	wantCRC := binary.BigEndian.Uint32(b[headerSize+int(payloadLen) : frameLen])
	if gotCRC := crc32.ChecksumIEEE(payload); gotCRC != wantCRC {
		return 0, nil, fmt.Errorf("%w: got %08x, want %08x", ErrBadCRC, gotCRC, wantCRC)
	}

	cmd, err = unmarshalCommand(payload)
	if err != nil {
		return 0, nil, err
	}
	return timestampUs, cmd, nil
}

// FrameLen returns the total on-wire length of a frame whose header has
// already been read, or ok=false if header doesn't contain enough bytes yet.
func FrameLen(header []byte) (n int, ok bool) {
	if len(header) < headerSize {
		return 0, false
	}
	payloadLen := binary.BigEndian.Uint32(header[18:22])
	return headerSize + int(payloadLen) + crcSize, true
}
