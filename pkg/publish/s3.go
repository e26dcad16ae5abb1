package publish

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/root4loot/goutils/log"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// objectStore is the part of *minio.Client the mirror uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// S3Store mirrors a folder of screenshots into a bucket.
type S3Store struct {
	client     objectStore
	bucketName string
	region     string
	prefix     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     normalizePrefix(cfg.Prefix),
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Mirror uploads each file as <prefix><base name> and then removes every
// other object under the prefix, so the prefix holds the same set of
// images as the folder. Stale objects are only removed when a prefix is
// set and at least one file was uploaded; objects outside the prefix are
// never touched. Per-object failures are logged and returned joined; they
// never stop the remaining objects.
func (s *S3Store) Mirror(ctx context.Context, files []string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	var (
		errs     []error
		uploaded int
	)
	keep := make(map[string]bool, len(files))

	// a failed upload keeps the old object under its key
	for _, file := range files {
		key := objectKey(s.prefix, file)
		keep[key] = true

		_, err := s.client.FPutObject(ctx, s.bucketName, key, file, minio.PutObjectOptions{
			ContentType: "image/png",
		})
		if err != nil {
			log.Warnf("Could not upload %s to %s/%s: %v", file, s.bucketName, key, err)
			errs = append(errs, fmt.Errorf("upload %s: %w", key, err))
			continue
		}
		uploaded++
		log.Debugf("Uploaded %s to %s/%s", file, s.bucketName, key)
	}

	switch {
	case s.prefix == "":
		log.Debugf("No prefix set for %s, leaving existing objects in place", s.bucketName)
		return errors.Join(errs...)
	case uploaded == 0:
		log.Warnf("Nothing uploaded to %s/%s, leaving existing objects in place", s.bucketName, s.prefix)
		return errors.Join(errs...)
	}

	stale, err := s.staleKeys(ctx, keep)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list %s/%s: %w", s.bucketName, s.prefix, err))...)
	}

	for _, key := range stale {
		if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
			log.Warnf("Could not remove stale object %s/%s: %v", s.bucketName, key, err)
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
			continue
		}
		log.Debugf("Removed stale object %s/%s", s.bucketName, key)
	}

	return errors.Join(errs...)
}

// staleKeys lists the keys under the prefix that are not in keep.
func (s *S3Store) staleKeys(ctx context.Context, keep map[string]bool) ([]string, error) {
	if s.prefix == "" {
		return nil, errors.New("refusing to list stale objects without a prefix")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stale []string
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" || keep[obj.Key] || !strings.HasPrefix(obj.Key, s.prefix) {
			continue
		}
		stale = append(stale, obj.Key)
	}
	sort.Strings(stale)
	return stale, nil
}

// objectKey returns the key of a local file under prefix. Only the base
// name is kept; output folders are flat.
func objectKey(prefix, file string) string {
	return prefix + filepath.Base(file)
}

// normalizePrefix turns " /previews//" into "previews/". An empty prefix
// mirrors into the bucket root.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return path.Clean(prefix) + "/"
}
