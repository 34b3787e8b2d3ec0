// Package blobstore stores engine checkpoints as named immutable blobs.
//
// Store is the interface checkpoints are written to and read from.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, atomic writes, mmap reads
//   - MemoryStore: in-process map, for tests
//   - s3.Store: Amazon S3 via the AWS SDK upload manager
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
//	type Store interface {
//	    Put(ctx, name, data) error
//	    Get(ctx, name) ([]byte, error)
//	    List(ctx, prefix) ([]string, error)
//	    Delete(ctx, name) error
//	}
package blobstore
