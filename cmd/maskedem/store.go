package main

import (
	"context"
	"errors"
	"os"

	"github.com/hupe1980/maskedem/blobstore"
	"github.com/hupe1980/maskedem/blobstore/minio"
	s3store "github.com/hupe1980/maskedem/blobstore/s3"
)

// openStore returns the checkpoint store selected by the flags, or nil when
// checkpointing is off. MinIO credentials come from MINIO_ACCESS_KEY and
// MINIO_SECRET_KEY.
func openStore(ctx context.Context, o runOptions) (blobstore.Store, error) {
	selected := 0
	for _, v := range []string{o.checkpointDir, o.s3Bucket, o.minioEndpoint} {
		if v != "" {
			selected++
		}
	}
	if selected > 1 {
		return nil, errors.New("choose one of --checkpoint-dir, --s3-bucket and --minio-endpoint")
	}

	switch {
	case o.checkpointDir != "":
		if err := os.MkdirAll(o.checkpointDir, 0o755); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(o.checkpointDir), nil
	case o.s3Bucket != "":
		var opts []s3store.Option
		if o.prefix != "" {
			opts = append(opts, s3store.WithPrefix(o.prefix))
		}
		if o.s3Region != "" {
			opts = append(opts, s3store.WithRegion(o.s3Region))
		}
		if o.s3Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(o.s3Endpoint))
		}
		return s3store.New(ctx, o.s3Bucket, opts...)
	case o.minioEndpoint != "":
		return minio.Dial(ctx, o.minioEndpoint,
			os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"),
			o.minioBucket, o.prefix, o.minioSecure)
	default:
		return nil, nil
	}
}
