package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUse reports whether the config is complete enough to build an S3Store.
func (c S3Config) CanUse() bool {
	for _, v := range []string{c.Endpoint, c.AccessKey, c.SecretKey, c.Bucket} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// S3Store keeps revisions as objects keyed like DiskStore paths, in an
// S3-compatible bucket (MinIO in local setups).
type S3Store struct {
	client *minio.Client
	bucket string
	region string

	bucketOnce sync.Once
	bucketErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if !cfg.CanUse() {
		return nil, errors.New("artifact: s3 endpoint, credentials and bucket are required")
	}
	region := firstNonBlank(cfg.Region, "us-east-1")
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

// ensureBucket creates the bucket on first use.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		ok, err := s.client.BucketExists(ctx, s.bucket)
		switch {
		case err != nil:
			s.bucketErr = err
		case !ok:
			s.bucketErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})
	if s.bucketErr != nil {
		return fmt.Errorf("artifact: bucket %s: %w", s.bucket, s.bucketErr)
	}
	return nil
}

func (s *S3Store) Save(ctx context.Context, rev Revision) error {
	rev, err := validate(rev)
	if err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, revisionKey(rev), bytes.NewReader(rev.Content), int64(len(rev.Content)), minio.PutObjectOptions{
		ContentType: "text/x-python; charset=utf-8",
		UserMetadata: map[string]string{
			"Kind":      rev.Kind,
			"Iteration": roundDir(rev.Iteration),
		},
	})
	return err
}

func (s *S3Store) Load(ctx context.Context, runID string, iteration int, p string) (Revision, error) {
	runID, err := validRunID(runID)
	if err != nil {
		return Revision{}, err
	}
	if p, err = cleanPath(p); err != nil {
		return Revision{}, err
	}
	es, err := s.List(ctx, Query{RunID: runID, Iteration: iteration})
	if err != nil {
		return Revision{}, err
	}
	e, ok := pick(es, iteration, p)
	if !ok {
		return Revision{}, ErrNotFound
	}
	rev := Revision{RunID: runID, Iteration: e.Iteration, Path: e.Path, Kind: e.Kind}
	obj, err := s.client.GetObject(ctx, s.bucket, revisionKey(rev), minio.GetObjectOptions{})
	if err != nil {
		return Revision{}, err
	}
	defer obj.Close()
	if rev.Content, err = io.ReadAll(obj); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return Revision{}, ErrNotFound
		}
		return Revision{}, err
	}
	return rev, nil
}

func (s *S3Store) List(ctx context.Context, q Query) ([]Entry, error) {
	runID, err := validRunID(q.RunID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	runPrefix := runID + "/"
	prefix := runPrefix
	if q.Iteration > 0 {
		prefix += roundDir(q.Iteration) + "/"
	}
	var out []Entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		e, ok := parseKey(strings.TrimPrefix(obj.Key, runPrefix))
		if !ok || !q.match(e) {
			continue
		}
		e.Size = obj.Size
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
