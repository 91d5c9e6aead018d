// Package objectstore persists asset values as objects in an S3-compatible
// bucket. A single PUT replaces an object, so a failed upload leaves the
// previous object in place.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sidas/internal/persist"
)

const backendName = "objectstore"

// ErrObjectMissing is what Client implementations return for absent objects.
var ErrObjectMissing = errors.New("object does not exist")

// Client is the slice of the S3 API the adapter needs.
type Client interface {
	Put(ctx context.Context, bucket, object string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, object string) ([]byte, error)
	Stat(ctx context.Context, bucket, object string) error
	Remove(ctx context.Context, bucket, object string) error
}

type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Format    string
}

type Adapter struct {
	client Client
	bucket string
	prefix string
	codec  persist.Codec
}

// New connects to the endpoint in cfg and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("objectstore: endpoint and bucket are required")
	}
	codec, err := persist.CodecFor(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("objectstore: %w", err)
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: client: %w", err)
	}
	ok, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("objectstore: check bucket %q: %w", cfg.Bucket, err)
	}
	if !ok {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("objectstore: create bucket %q: %w", cfg.Bucket, err)
		}
	}
	return NewWithClient(&minioClient{c: mc}, cfg.Bucket, cfg.Prefix, codec), nil
}

// NewWithClient builds an adapter over an existing client. A nil codec means JSON.
func NewWithClient(c Client, bucket, prefix string, codec persist.Codec) *Adapter {
	if codec == nil {
		codec = persist.JSONCodec{}
	}
	return &Adapter{client: c, bucket: bucket, prefix: strings.Trim(prefix, "/"), codec: codec}
}

func (a *Adapter) Backend() string { return backendName }

func (a *Adapter) objectName(key string) string {
	return path.Join(a.prefix, key) + "." + a.codec.Name()
}

func (a *Adapter) Load(ctx context.Context, key string) (any, error) {
	data, err := a.client.Get(ctx, a.bucket, a.objectName(key))
	if errors.Is(err, ErrObjectMissing) {
		return nil, persist.NotFound(backendName, key)
	}
	if err != nil {
		return nil, persist.Wrap(backendName, "load", key, err)
	}
	v, err := a.codec.Decode(data)
	return v, persist.Wrap(backendName, "load", key, err)
}

func (a *Adapter) Save(ctx context.Context, key string, value any) error {
	data, err := a.codec.Encode(value)
	if err != nil {
		return persist.Wrap(backendName, "save", key, err)
	}
	err = a.client.Put(ctx, a.bucket, a.objectName(key), data, contentType(a.codec))
	return persist.Wrap(backendName, "save", key, err)
}

func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	err := a.client.Stat(ctx, a.bucket, a.objectName(key))
	if errors.Is(err, ErrObjectMissing) {
		return false, nil
	}
	if err != nil {
		return false, persist.Wrap(backendName, "exists", key, err)
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	err := a.client.Remove(ctx, a.bucket, a.objectName(key))
	if errors.Is(err, ErrObjectMissing) {
		return nil
	}
	return persist.Wrap(backendName, "delete", key, err)
}

func contentType(c persist.Codec) string {
	switch c.Name() {
	case "ndjson":
		return "application/x-ndjson"
	case "yaml":
		return "application/yaml"
	default:
		return "application/json"
	}
}

type minioClient struct {
	c *minio.Client
}

func (m *minioClient) Put(ctx context.Context, bucket, object string, data []byte, ct string) error {
	_, err := m.c.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ct})
	return err
}

func (m *minioClient) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := m.c.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func (m *minioClient) Stat(ctx context.Context, bucket, object string) error {
	_, err := m.c.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	return translate(err)
}

func (m *minioClient) Remove(ctx context.Context, bucket, object string) error {
	return translate(m.c.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %v", ErrObjectMissing, err)
	}
	return err
}
