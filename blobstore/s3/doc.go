// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("checkpoints/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Uploads go through the SDK upload manager; objects below the part size
// carry a CRC32C checksum verified by S3.
package s3
