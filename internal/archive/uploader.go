// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/pgzip"
)

// Uploader puts a gzip-compressed NDJSON object into S3.
type Uploader interface {
	Upload(ctx context.Context, key string, ndjsonGzip []byte) error
}

// s3Uploader is the production Uploader, backed by aws-sdk-go-v2. When
// bytesPerSec is positive, uploads are throttled to that outbound rate so a
// large sweep can't saturate the host's link; 0 means unlimited.
type s3Uploader struct {
	client      *s3.Client
	bucket      string
	bytesPerSec int64
}

// NewS3Uploader builds an Uploader against bucket using client, throttled to
// bytesPerSec bytes/second (0 or negative disables throttling).
func NewS3Uploader(client *s3.Client, bucket string, bytesPerSec int64) Uploader {
	return &s3Uploader{client: client, bucket: bucket, bytesPerSec: bytesPerSec}
}

func (u *s3Uploader) Upload(ctx context.Context, key string, ndjsonGzip []byte) error {
	body, closeBody := u.throttledBody(ctx, ndjsonGzip)
	defer closeBody()

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", key, u.bucket, err)
	}
	return nil
}

// throttledBody returns an io.Reader that PutObject streams from. When
// throttling is enabled it feeds data through a ThrottledWriter over an
// io.Pipe, pacing the write side to bytesPerSec; the returned closer
// releases the pipe writer's goroutine if the caller abandons the read
// early (e.g. PutObject returning an error before EOF).
func (u *s3Uploader) throttledBody(ctx context.Context, data []byte) (io.Reader, func()) {
	if u.bytesPerSec <= 0 {
		return bytes.NewReader(data), func() {}
	}

	pr, pw := io.Pipe()
	tw := NewThrottledWriter(ctx, pw, u.bytesPerSec)
	go func() {
		_, err := tw.Write(data)
		pw.CloseWithError(err)
	}()
	return pr, func() { pr.Close() }
}

// gzipNDJSON compresses an already-serialized newline-delimited JSON batch
// with pgzip's parallel deflate — these batches can be large, and a
// single-threaded gzip would make the sweep the slowest thing in the
// pipeline.
func gzipNDJSON(ndjson []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if _, err := zw.Write(ndjson); err != nil {
		zw.Close()
		return nil, fmt.Errorf("compressing archive batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive batch compressor: %w", err)
	}
	return buf.Bytes(), nil
}
