package backend

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/text/unicode/norm"

	"github.com/vidyalaya/prayerbell/internal/upload"
)

// MinioConfig configures MinioStore. The env tags are read by the config
// package.
type MinioConfig struct {
	Endpoint   string `env:"MINIO_ENDPOINT" mapstructure:"endpoint"`
	AccessKey  string `env:"MINIO_ACCESS_KEY" mapstructure:"-"`
	SecretKey  string `env:"MINIO_SECRET_KEY" mapstructure:"-"`
	Bucket     string `env:"MINIO_BUCKET" mapstructure:"bucket"`
	UseSSL     bool   `env:"MINIO_USE_SSL" mapstructure:"use_ssl"`
	PublicBase string `env:"MINIO_PUBLIC_BASE" mapstructure:"public_base"`
}

// Enabled reports whether enough is configured to use object storage.
func (c MinioConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// MinioStore persists clips in an S3 compatible bucket.
type MinioStore struct {
	config MinioConfig
	client *minio.Client
	logger *log.Logger
}

// NewMinioStore creates a store. The bucket is created on first use.
func NewMinioStore(config MinioConfig) (*MinioStore, error) {
	cli, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioStore{config: config, client: cli, logger: log.WithPrefix("minio")}, nil
}

// Persist implements upload.Persister.
func (m *MinioStore) Persist(ctx context.Context, schoolID, prayerID string, f upload.File) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}
	key := ObjectKey(schoolID, prayerID, f.Name)
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.config.Bucket, key, bytes.NewReader(f.Data), f.Size(),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	m.logger.Debug("Stored clip", "key", key, "bytes", f.Size())
	return m.PublicURL(key), nil
}

func (m *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.config.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return m.client.MakeBucket(ctx, m.config.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// PublicURL returns the address clients fetch key from.
func (m *MinioStore) PublicURL(key string) string {
	return publicURL(m.config, key)
}

func publicURL(c MinioConfig, key string) string {
	if c.PublicBase != "" {
		return strings.TrimRight(c.PublicBase, "/") + "/" + key
	}
	scheme := "http://"
	if c.UseSSL {
		scheme = "https://"
	}
	return scheme + c.Endpoint + "/" + c.Bucket + "/" + key
}

// ObjectKey builds schools/{school}/prayers/{prayer}/{name} with a name that is
// safe in a URL path.
func ObjectKey(schoolID, prayerID, name string) string {
	return path.Join("schools", safeSegment(schoolID), "prayers", safeSegment(prayerID), safeSegment(name))
}

func safeSegment(s string) string {
	s = norm.NFKD.String(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "unnamed"
	}
	return out
}
