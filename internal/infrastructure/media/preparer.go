// Package media turns raw captures into upload-ready card images.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"regexp"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

const (
	DefaultMaxBytes = 15 << 20
	DefaultMaxEdge  = 1600
	jpegQuality     = 85
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var dataURL = regexp.MustCompile(`^data:image/(png|jpeg|jpg|webp);base64,`)

// Preparer decodes a capture, applies EXIF orientation, bounds its size and
// re-encodes it as JPEG.
type Preparer struct {
	maxBytes int64
	maxEdge  int
}

func NewPreparer(maxBytes int64, maxEdge int) *Preparer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Preparer{maxBytes: maxBytes, maxEdge: maxEdge}
}

func (p *Preparer) Prepare(_ context.Context, body io.Reader) (domain.PreparedImage, error) {
	raw, err := io.ReadAll(io.LimitReader(body, p.maxBytes+1))
	if err != nil {
		return domain.PreparedImage{}, fmt.Errorf("read capture: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return domain.PreparedImage{}, invalid(fmt.Errorf("capture exceeds %d bytes", p.maxBytes))
	}
	if len(raw) == 0 {
		return domain.PreparedImage{}, invalid(errors.New("capture is empty"))
	}

	raw, err = unwrapDataURL(raw)
	if err != nil {
		return domain.PreparedImage{}, invalid(err)
	}

	detected := mimetype.Detect(raw).String()
	if !supportedTypes[detected] {
		return domain.PreparedImage{}, invalid(fmt.Errorf("unsupported image type %s", detected))
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return domain.PreparedImage{}, invalid(fmt.Errorf("decode %s: %w", detected, err))
	}
	img = p.bound(img)

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return domain.PreparedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}
	bounds := img.Bounds()
	return domain.PreparedImage{
		Data:     out.Bytes(),
		MimeType: "image/jpeg",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

func (p *Preparer) bound(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= p.maxEdge && b.Dy() <= p.maxEdge {
		return img
	}
	return imaging.Fit(img, p.maxEdge, p.maxEdge, imaging.Lanczos)
}

func unwrapDataURL(raw []byte) ([]byte, error) {
	loc := dataURL.FindIndex(raw)
	if loc == nil {
		return raw, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(raw[loc[1]:])))
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return decoded, nil
}

func invalid(err error) error {
	return domain.WrapError(domain.ErrInvalidInput, "prepare image", err)
}
