package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioProvider stores objects in a MinIO or S3 bucket.
//
// Config keys: endpoint, access_key, secret_key and bucket are required;
// secure (default true), region (default us-east-1), prefix and
// create_bucket are optional. An http:// or https:// scheme on the endpoint
// decides secure by itself.
type MinioProvider struct {
	client       *minio.Client
	endpoint     string
	secure       bool
	bucket       string
	region       string
	prefix       string
	createBucket bool

	// The bucket is checked on first upload so configuring needs no network.
	bucketOnce sync.Once
	bucketErr  error
}

// NewMinioProvider creates a new MinioProvider
func NewMinioProvider() *MinioProvider {
	return &MinioProvider{}
}

// Name returns the provider name
func (m *MinioProvider) Name() string {
	return "minio"
}

// Endpoint returns the configured host without scheme.
func (m *MinioProvider) Endpoint() string { return m.endpoint }

// Secure reports whether TLS is used.
func (m *MinioProvider) Secure() bool { return m.secure }

// Configure creates the client from config.
func (m *MinioProvider) Configure(config map[string]any) error {
	endpoint, ok := getStringValue(config, "endpoint")
	if !ok {
		return fmt.Errorf("minio: endpoint is required")
	}
	accessKey, ok := getStringValue(config, "access_key")
	if !ok {
		return fmt.Errorf("minio: access_key is required")
	}
	secretKey, ok := getStringValue(config, "secret_key")
	if !ok {
		return fmt.Errorf("minio: secret_key is required")
	}
	bucket, ok := getStringValue(config, "bucket")
	if !ok {
		return fmt.Errorf("minio: bucket is required")
	}

	host, secure, err := parseEndpoint(endpoint, getBoolValue(config, "secure", true))
	if err != nil {
		return err
	}
	region := getStringValueWithDefault(config, "region", "us-east-1")

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return fmt.Errorf("minio: failed to create client: %w", err)
	}

	m.client = client
	m.endpoint = host
	m.secure = secure
	m.bucket = bucket
	m.region = region
	m.prefix = strings.Trim(getStringValueWithDefault(config, "prefix", ""), "/")
	m.createBucket = getBoolValue(config, "create_bucket", false)
	return nil
}

// parseEndpoint strips an http(s) scheme, which overrides the secure flag.
func parseEndpoint(endpoint string, secure bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, secure, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("minio: invalid endpoint URL %q", endpoint)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("minio: invalid endpoint URL %q: unsupported scheme %q", endpoint, u.Scheme)
	}
}

// ObjectName is where remotePath lands in the bucket.
func (m *MinioProvider) ObjectName(remotePath string) string {
	name := strings.TrimLeft(remotePath, "/")
	if m.prefix != "" {
		name = path.Join(m.prefix, name)
	}
	return name
}

func (m *MinioProvider) ensureBucket(ctx context.Context) error {
	m.bucketOnce.Do(func() {
		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.bucketErr = fmt.Errorf("minio: failed to check bucket existence: %w", err)
			return
		}
		if exists {
			return
		}
		if !m.createBucket {
			m.bucketErr = fmt.Errorf("minio: bucket %s does not exist", m.bucket)
			return
		}
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			m.bucketErr = fmt.Errorf("minio: failed to create bucket %s: %w", m.bucket, err)
		}
	})
	return m.bucketErr
}

// Upload streams reader to the bucket.
func (m *MinioProvider) Upload(ctx context.Context, reader io.Reader, remotePath string) error {
	if m.client == nil {
		return fmt.Errorf("minio: provider not configured")
	}
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	objectName := m.ObjectName(remotePath)
	opts := minio.PutObjectOptions{ContentType: contentType(objectName)}
	// Size -1 streams with multipart upload.
	if _, err := m.client.PutObject(ctx, m.bucket, objectName, reader, -1, opts); err != nil {
		return fmt.Errorf("minio: failed to upload to %s: %w", objectName, err)
	}
	return nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func getStringValue(config map[string]any, key string) (string, bool) {
	if val, ok := config[key]; ok {
		if str, ok := val.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func getStringValueWithDefault(config map[string]any, key, defaultValue string) string {
	if val, ok := getStringValue(config, key); ok {
		return val
	}
	return defaultValue
}

func getBoolValue(config map[string]any, key string, defaultValue bool) bool {
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
