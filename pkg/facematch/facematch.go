package facematch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/arnavshah/shiftboard-go/pkg/models"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// DefaultField is the multipart field name the matching service reads
const DefaultField = "file"

// Client submits captured frames to the face-matching service
type Client struct {
	URL        string
	Field      string
	HTTPClient *http.Client
}

// New creates a client for the matching endpoint at url
func New(url string, timeout time.Duration) *Client {
	return &Client{
		URL:        url,
		Field:      DefaultField,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Match uploads one JPEG and returns the service verdict
func (c *Client) Match(ctx context.Context, jpeg []byte) (models.MatchResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	field := c.Field
	if field == "" {
		field = DefaultField
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, uuid.NewString()+".jpg"))
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	if err != nil {
		return models.MatchResult{}, err
	}
	if _, err := part.Write(jpeg); err != nil {
		return models.MatchResult{}, err
	}
	if err := mw.Close(); err != nil {
		return models.MatchResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return models.MatchResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return models.MatchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.MatchResult{}, fmt.Errorf("face match: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result models.MatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.MatchResult{}, fmt.Errorf("face match: decode response: %w", err)
	}
	return result, nil
}

// EncodeOptions controls how a frame is prepared for upload
type EncodeOptions struct {
	MaxSide int // longest edge in pixels; 0 keeps the original size
	Quality int // JPEG quality 1-100
}

// EncodeJPEG downsizes img to fit MaxSide and encodes it as JPEG
func EncodeJPEG(img image.Image, opts EncodeOptions) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if opts.MaxSide > 0 && (b.Dx() > opts.MaxSide || b.Dy() > opts.MaxSide) {
		img = imaging.Fit(img, opts.MaxSide, opts.MaxSide, imaging.Lanczos)
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
