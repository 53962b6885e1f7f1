package photo

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty     = errors.New("photo: empty payload")
	ErrTooLarge  = errors.New("photo: payload too large")
	ErrNotImage  = errors.New("photo: payload is not an image")
	ErrBadInline = errors.New("photo: malformed inline data")
)

// Store persists photo bytes and returns an opaque reference.
type Store interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// LocalStore writes photos as files under Dir. References are bare file names
// served from /uploads/.
type LocalStore struct {
	Dir          string
	MaxBytes     int64
	MaxDimension int
}

func NewLocalStore(dir string, maxBytes int64, maxDimension int) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &LocalStore{Dir: dir, MaxBytes: maxBytes, MaxDimension: maxDimension}, nil
}

// decodable lists the formats the registered decoders can read. Anything else, SVG included, is refused.
var decodable = []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp"}

// Save sniffs the payload, downscales it to fit MaxDimension and re-encodes it as
// JPEG. Only the re-encoded pixels reach disk.
func (s *LocalStore) Save(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return "", ErrTooLarge
	}
	if mt := mimetype.Detect(data); !mimetype.EqualsAny(mt.String(), decodable...) {
		return "", ErrNotImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	b := img.Bounds()
	if s.MaxDimension > 0 && (b.Dx() > s.MaxDimension || b.Dy() > s.MaxDimension) {
		img = imaging.Fit(img, s.MaxDimension, s.MaxDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("encode photo: %w", err)
	}

	ref := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.Dir, ref), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return ref, nil
}

// DecodeInline accepts a data URL ("data:image/png;base64,...") or bare base64.
func DecodeInline(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, ErrBadInline
		}
		s = s[comma+1:]
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, ErrBadInline
	}
	return data, nil
}

// ResolveURL turns a stored reference into an absolute URL. Absolute references
// pass through unchanged; empty references resolve to nil.
func ResolveURL(baseURL, ref string) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return &ref
	}
	u := strings.TrimRight(baseURL, "/") + "/uploads/" + strings.TrimLeft(ref, "/")
	return &u
}
