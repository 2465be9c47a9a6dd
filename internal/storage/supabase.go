package storage

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	supabase "github.com/supabase-community/storage-go"
)

// SupabaseOptions configures a SupabaseBucket.
type SupabaseOptions struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	Logger     *logrus.Logger
}

// SupabaseBucket writes objects to a Supabase Storage bucket.
type SupabaseBucket struct {
	client *supabase.Client
	bucket string
	logger *logrus.Logger
}

var _ Bucket = (*SupabaseBucket)(nil)

// NewSupabaseBucket validates options and builds a bucket client. BaseURL is
// the project URL; the storage API lives under /storage/v1.
func NewSupabaseBucket(opts SupabaseOptions) (*SupabaseBucket, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, eris.New("supabase url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, eris.Wrapf(err, "invalid supabase url: %s", base)
	}
	if opts.ServiceKey == "" {
		return nil, eris.New("supabase service key is required")
	}
	if opts.Bucket == "" {
		return nil, eris.New("storage bucket is required")
	}

	return &SupabaseBucket{
		client: supabase.NewClient(base+"/storage/v1", opts.ServiceKey, nil),
		bucket: opts.Bucket,
		logger: opts.Logger,
	}, nil
}

// Upload creates the object without overwriting and returns its public URL.
func (b *SupabaseBucket) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	upsert := false
	resp, err := b.client.UploadFile(b.bucket, path, bytes.NewReader(data), supabase.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		err = classifyUploadError(err.Error(), err)
		b.logError(err, "storage upload failed", logrus.Fields{"path": path})
		return "", err
	}
	if resp.Key == "" {
		err = classifyUploadError(resp.Message, eris.Errorf("storage rejected upload: %s", resp.Message))
		b.logError(err, "storage upload rejected", logrus.Fields{"path": path})
		return "", err
	}

	return b.PublicURL(path), nil
}

// PublicURL is the anonymous download address of path.
func (b *SupabaseBucket) PublicURL(path string) string {
	return b.client.GetPublicUrl(b.bucket, path).SignedURL
}

func (b *SupabaseBucket) logError(err error, message string, fields logrus.Fields) {
	if b.logger == nil {
		return
	}
	b.logger.WithFields(fields).WithField("error", err.Error()).Error(message)
}

// classifyUploadError maps the duplicate-object response onto ErrExists.
func classifyUploadError(message string, err error) error {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate") {
		return eris.Wrap(ErrExists, message)
	}
	return eris.Wrap(err, "uploading to storage")
}
