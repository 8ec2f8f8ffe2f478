// Package sink opens the destination that serialized descriptors are
// written to: standard output, a local file or an S3 object.
package sink

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mattn/go-isatty"
	"github.com/nishad/srafetch/internal/errors"
)

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the client built for s3:// destinations.
type S3Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// Options tunes Open.
type Options struct {
	// Stdout replaces os.Stdout for "" and "-" destinations.
	Stdout io.Writer
	// ContentType is attached to uploaded objects.
	ContentType string
	S3          S3Options
	// Putter overrides the S3 client built from S3.
	Putter ObjectPutter
}

// Open returns a writer for dest. "" and "-" mean standard output, which
// is buffered unless it is a terminal; "s3://bucket/key" buffers in memory
// and uploads on Close; anything else is a file path whose parent
// directories are created. Close must be called to flush.
func Open(ctx context.Context, dest string, opts Options) (io.WriteCloser, error) {
	const op errors.Op = "sink.Open"

	switch {
	case dest == "" || dest == "-":
		return openStdout(opts.Stdout), nil
	case strings.HasPrefix(dest, "s3://"):
		bucket, key, err := ParseS3URL(dest)
		if err != nil {
			return nil, errors.E(op, errors.KindValidation, err)
		}
		putter := opts.Putter
		if putter == nil {
			client, err := newS3Client(ctx, opts.S3)
			if err != nil {
				return nil, errors.E(op, errors.KindConfig, err)
			}
			putter = client
		}
		return &s3Writer{ctx: ctx, putter: putter, bucket: bucket, key: key, contentType: opts.ContentType}, nil
	default:
		if dir := filepath.Dir(dest); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.E(op, errors.KindIO, err)
			}
		}
		f, err := os.Create(dest)
		if err != nil {
			return nil, errors.E(op, errors.KindIO, err)
		}
		return &bufferedCloser{Writer: bufio.NewWriter(f), closer: f}, nil
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func openStdout(w io.Writer) io.WriteCloser {
	if w == nil {
		w = os.Stdout
	}
	if IsTerminal(w) {
		return nopCloser{w}
	}
	return &bufferedCloser{Writer: bufio.NewWriter(w)}
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(u, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %q", u)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 url needs a bucket and an object key: %q", u)
	}
	return bucket, key, nil
}

func newS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if o.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(o.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.UsePathStyle
	}), nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type bufferedCloser struct {
	*bufio.Writer
	closer io.Closer
	closed bool
}

func (b *bufferedCloser) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	err := b.Flush()
	if b.closer != nil {
		if cerr := b.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

type s3Writer struct {
	ctx         context.Context
	putter      ObjectPutter
	bucket, key string
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed s3 object %s/%s", w.bucket, w.key)
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	const op errors.Op = "sink.s3Writer.Close"
	if w.closed {
		return nil
	}
	w.closed = true

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	}
	if w.contentType != "" {
		input.ContentType = aws.String(w.contentType)
	}
	// the batch is flushed even when the run was interrupted
	if _, err := w.putter.PutObject(context.WithoutCancel(w.ctx), input); err != nil {
		return errors.E(op, errors.KindNetwork, fmt.Errorf("failed to put s3://%s/%s: %w", w.bucket, w.key, err))
	}
	return nil
}
