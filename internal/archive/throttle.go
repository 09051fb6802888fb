// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize caps the token bucket's burst at 256KB regardless of the
// configured rate, so a large upload_bytes_per_sec value doesn't let an
// entire archive batch through in one uncontrolled burst.
const maxBurstSize = 256 * 1024

// ThrottledWriter is an io.Writer with token-bucket rate limiting, used to
// cap the outbound bandwidth of an archive upload.
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledWriter wraps w with a rate limit of bytesPerSec bytes/second.
// If bytesPerSec <= 0, it returns w unwrapped (no throttling).
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}

	return &ThrottledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write splits writes larger than the burst size into chunks so tokens are
// consumed gradually instead of all at once.
func (tw *ThrottledWriter) Write(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		chunk := len(p)
		if chunk > tw.limiter.Burst() {
			chunk = tw.limiter.Burst()
		}

		if err := tw.limiter.WaitN(tw.ctx, chunk); err != nil {
			return totalWritten, err
		}

		n, err := tw.w.Write(p[:chunk])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[n:]
	}

	return totalWritten, nil
}
