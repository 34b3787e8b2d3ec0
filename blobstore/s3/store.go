package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/maskedem/blobstore"
	"github.com/hupe1980/maskedem/internal/hash"
)

// Client is the subset of the S3 API used by Store. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// defaultPartSize is the multipart threshold of the upload manager.
const defaultPartSize = 8 * 1024 * 1024

// Store implements blobstore.Store for S3.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	partSize int64
}

type options struct {
	prefix      string
	region      string
	endpoint    string
	partSize    int64
	concurrency int
}

// Option configures New.
type Option func(*options)

// WithPrefix sets the key prefix prepended to every blob name.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint sets a custom endpoint (e.g. LocalStack) and enables
// path-style addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithPartSize sets the multipart upload part size in bytes.
func WithPartSize(size int64) Option {
	return func(o *options) { o.partSize = size }
}

// WithConcurrency sets the number of concurrent part uploads.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	o := options{partSize: defaultPartSize, concurrency: manager.DefaultUploadConcurrency}
	for _, fn := range optFns {
		fn(&o)
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
			so.UsePathStyle = true
		}
	})

	s := NewStore(client, bucket, o.prefix)
	s.partSize = o.partSize
	s.uploader = newUploader(client, o.partSize, o.concurrency)
	return s, nil
}

// NewStore creates a Store from an existing client.
// rootPrefix is prepended to all keys (e.g. "checkpoints/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client:   client,
		uploader: newUploader(client, defaultPartSize, manager.DefaultUploadConcurrency),
		bucket:   bucket,
		prefix:   rootPrefix,
		partSize: defaultPartSize,
	}
}

func newUploader(client Client, partSize int64, concurrency int) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = concurrency
	})
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads data. Single-part uploads carry a CRC32C checksum.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	}
	if int64(len(data)) < s.partSize {
		input.ChecksumCRC32C = aws.String(computeCRC32C(data))
	}
	_, err := s.uploader.Upload(ctx, input)
	return err
}

// Get downloads the whole object.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, blobstore.ErrNotFound
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// List pages through ListObjectsV2 and returns names relative to the prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	if strings.HasSuffix(prefix, "/") && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}
	root := strings.TrimSuffix(s.prefix, "/")

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if root != "" {
				name = strings.TrimPrefix(strings.TrimPrefix(name, root), "/")
			}
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// computeCRC32C computes the CRC32C checksum and returns it as base64 (S3 format).
func computeCRC32C(data []byte) string {
	sum := hash.CRC32C(data)
	// S3 expects base64-encoded big-endian bytes
	b := []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
	return base64.StdEncoding.EncodeToString(b)
}

var _ blobstore.Store = (*Store)(nil)
