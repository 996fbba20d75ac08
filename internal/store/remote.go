package store

import (
	"context"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/opencontainers/go-digest"

	"github.com/kilnbuild/kiln/internal/errx"
)

// Connection settings for the remote cache tier.
type RemoteConfig struct {
	Endpoint  string // S3 endpoint, host[:port].
	Bucket    string // Bucket holding cache records.
	Prefix    string // Object key prefix inside the bucket (may be empty).
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool // Use TLS.
}

// An S3-backed cache tier shared across machines.
//
// Records map to objects under "<prefix>/<algorithm>/<hex>/". The remote
// tier is an accelerator: every operation against it goes through the
// local store first, so a missing or unreachable remote only costs cache
// hits, never correctness.
type Remote struct {
	client *minio.Client
	bucket string
	prefix string
}

// Connects to the remote tier and ensures its bucket exists.
func NewRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errx.Wrap(ErrStore, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errx.Wrap(ErrStore, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, errx.Wrap(ErrStore, err)
		}
	}

	return &Remote{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Downloads a record's files into dir.
//
// A missing object maps to [ErrNotFound] so read-through lookups can treat
// remote and local misses alike.
func (r *Remote) fetch(ctx context.Context, key digest.Digest, dir string) error {
	for _, name := range []string{archiveName, metaName} {
		dest := filepath.Join(dir, name)
		err := r.client.FGetObject(ctx, r.bucket, r.objectKey(key, name), dest, minio.GetObjectOptions{})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				return errx.Wrapf(ErrNotFound, "%s", key)
			}
			return errx.Wrap(ErrStore, err)
		}
	}
	return nil
}

// Uploads a record's files from dir.
func (r *Remote) store(ctx context.Context, key digest.Digest, dir string) error {
	for _, name := range []string{archiveName, metaName} {
		src := filepath.Join(dir, name)
		_, err := r.client.FPutObject(ctx, r.bucket, r.objectKey(key, name), src, minio.PutObjectOptions{})
		if err != nil {
			return errx.Wrap(ErrStore, err)
		}
	}
	return nil
}

// Maps a key and file name to an object key.
func (r *Remote) objectKey(key digest.Digest, name string) string {
	object := key.Algorithm().String() + "/" + key.Encoded() + "/" + name
	if r.prefix == "" {
		return object
	}
	return r.prefix + "/" + object
}
