package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxUploadSize is the largest accepted upload in bytes.
	MaxUploadSize = 5 << 20
	// MaxImageWidth is the width above which images are downscaled.
	MaxImageWidth = 1600
	// MaxImagePixels bounds width*height before an image is fully decoded.
	MaxImagePixels = 40_000_000
	// ObjectPrefix is the folder every upload is stored under.
	ObjectPrefix = "blog-images/"

	jpegQuality   = 85
	suffixLength  = 6
	base36Charset = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Uploaded describes a stored image.
type Uploaded struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
}

// UploaderOptions configures an Uploader.
type UploaderOptions struct {
	Bucket Bucket
	Logger *logrus.Logger
	Now    func() time.Time
	Random io.Reader
}

// Uploader validates, optionally downsizes and stores images.
type Uploader struct {
	bucket Bucket
	logger *logrus.Logger
	now    func() time.Time
	random io.Reader
}

// NewUploader builds an Uploader.
func NewUploader(opts UploaderOptions) (*Uploader, error) {
	if opts.Bucket == nil {
		return nil, eris.New("storage bucket is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}

	return &Uploader{bucket: opts.Bucket, logger: opts.Logger, now: now, random: random}, nil
}

// Upload reads an image from src and stores it under a generated name.
// The content type is detected from the bytes, not from the client.
func (u *Uploader) Upload(ctx context.Context, src io.Reader) (*Uploaded, error) {
	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return nil, eris.Wrap(err, "reading upload")
	}
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if _, ok := extensions[contentType]; !ok {
		return nil, ErrUnsupportedType
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(ErrUnsupportedType, "decoding image header")
	}
	width, height := config.Width, config.Height
	if int64(width)*int64(height) > MaxImagePixels {
		return nil, eris.Wrapf(ErrTooManyPixels, "image is %dx%d", width, height)
	}

	if contentType != "image/gif" && width > MaxImageWidth {
		data, width, height, err = downscale(data)
		if err != nil {
			return nil, err
		}
		contentType = "image/jpeg"
	}

	name, err := u.objectName(extensions[contentType])
	if err != nil {
		return nil, err
	}

	publicURL, err := u.bucket.Upload(ctx, ObjectPrefix+name, data, contentType)
	if err != nil {
		if u.logger != nil {
			u.logger.WithFields(logrus.Fields{"filename": name, "error": err.Error()}).Error("image upload failed")
		}
		return nil, eris.Wrap(err, "storing image")
	}

	return &Uploaded{
		URL:         publicURL,
		Filename:    name,
		ContentType: contentType,
		Width:       width,
		Height:      height,
		Size:        len(data),
	}, nil
}

// downscale resizes an image to MaxImageWidth and re-encodes it as JPEG.
func downscale(data []byte) ([]byte, int, int, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, eris.Wrap(ErrUnsupportedType, "decoding image")
	}

	bounds := src.Bounds()
	width := MaxImageWidth
	height := bounds.Dy() * MaxImageWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, eris.Wrap(err, "encoding jpeg")
	}
	return buf.Bytes(), width, height, nil
}

// objectName returns "<unix-ms>-<6 base36 chars>.<ext>".
func (u *Uploader) objectName(ext string) (string, error) {
	raw := make([]byte, suffixLength)
	if _, err := io.ReadFull(u.random, raw); err != nil {
		return "", eris.Wrap(err, "generating file name")
	}

	suffix := make([]byte, suffixLength)
	for i, b := range raw {
		suffix[i] = base36Charset[int(b)%len(base36Charset)]
	}

	return strconv.FormatInt(u.now().UnixMilli(), 10) + "-" + string(suffix) + "." + ext, nil
}
