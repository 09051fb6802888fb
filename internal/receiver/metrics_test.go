// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import (
	"errors"
	"testing"

	"github.com/telemetryd/telemetryd/internal/wire"
)

func TestDecodeErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{wire.ErrUnsupportedVersion, "unsupported_version"},
		{wire.ErrTruncated, "truncated"},
		{wire.ErrBadCRC, "bad_crc"},
		{wire.ErrBadPayload, "bad_payload"},
		{errors.New("something else"), "unknown"},
	}
	for _, c := range cases {
		if got := decodeErrorKind(c.err); got != c.want {
			t.Errorf("decodeErrorKind(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
