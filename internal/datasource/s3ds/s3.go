// Package s3ds reads pipeline inputs from S3 objects addressed as
// s3://bucket/key.
package s3ds

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"

	"movieetl/internal/datasource"
)

func init() {
	datasource.Register("s3", func(ref *url.URL, opt datasource.Options) (datasource.Source, error) {
		bucket, key, err := SplitRef(ref)
		if err != nil {
			return nil, err
		}
		return &Source{bucket: bucket, key: key, opt: opt}, nil
	})
}

// Source reads one object. The S3 client is created on first Open unless one
// was supplied with NewSource.
type Source struct {
	bucket string
	key    string
	opt    datasource.Options
	api    s3iface.S3API
}

// NewSource returns a Source using api for requests.
func NewSource(api s3iface.S3API, bucket, key string) *Source {
	return &Source{api: api, bucket: bucket, key: key}
}

// Bucket and Key return the object address.
func (s *Source) Bucket() string { return s.bucket }
func (s *Source) Key() string    { return s.key }

func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.api == nil {
		api, err := newClient(s.opt)
		if err != nil {
			return nil, err
		}
		s.api = api
	}
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "s3ds: fetching s3://%s/%s", s.bucket, s.key)
	}
	return out.Body, nil
}

func newClient(opt datasource.Options) (s3iface.S3API, error) {
	cfg := &aws.Config{}
	if opt.S3Region != "" {
		cfg.Region = aws.String(opt.S3Region)
	}
	if opt.S3Endpoint != "" {
		cfg.Endpoint = aws.String(opt.S3Endpoint)
	}
	if opt.S3ForcePathStyle {
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "s3ds: new session")
	}
	return s3.New(sess), nil
}

// SplitRef extracts bucket and key from an s3 URL.
func SplitRef(ref *url.URL) (bucket, key string, err error) {
	bucket = ref.Host
	key = strings.TrimPrefix(ref.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.Errorf("s3ds: %q must look like s3://bucket/key", ref.String())
	}
	return bucket, key, nil
}
