// Package extractor talks to the face-vector extraction service: it uploads
// a frame and gets back one feature vector per detected face. The service is
// an external collaborator; this package only wraps its HTTP contract.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultExtractorURL = "http://localhost:8000"

// ErrNoFaceFound means the frame contained no usable face. For a live
// session this is "no observation this frame", not a failure.
var ErrNoFaceFound = errors.New("extractor: no face found")

// Region is the bounding box of a detected face, [x1, y1, x2, y2] in pixel
// coordinates of the uploaded frame.
type Region [4]float64

// Face is one detected face with its feature vector.
type Face struct {
	Index    int       `json:"face_index"`
	Vector   []float32 `json:"embedding"`
	Region   Region    `json:"bbox"`
	DetScore float64   `json:"det_score"`
}

// Client calls the extraction service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an extraction client. An empty baseURL falls back to the
// local default.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// facesResponse is the extraction service's response shape.
type facesResponse struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// Extract uploads an image and returns every detected face in service order.
// Returns ErrNoFaceFound when the frame contains no face.
func (c *Client) Extract(ctx context.Context, imageData []byte) ([]Face, error) {
	body, err := c.postMultipartImage(ctx, "/faces", imageData)
	if err != nil {
		return nil, err
	}

	var resp facesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("extractor: parsing response: %w", err)
	}

	if len(resp.Faces) == 0 {
		return nil, ErrNoFaceFound
	}
	for _, f := range resp.Faces {
		if len(f.Vector) == 0 {
			return nil, fmt.Errorf("extractor: face %d has empty vector", f.Index)
		}
	}
	return resp.Faces, nil
}

// ExtractOne uploads an image and returns the vector of the single best
// face (the service lists faces by descending detection score). Used by
// enrollment, where reference images are expected to contain one face.
func (c *Client) ExtractOne(ctx context.Context, imageData []byte) ([]float32, error) {
	faces, err := c.Extract(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return faces[0].Vector, nil
}

// postMultipartImage uploads image bytes as a multipart form to the given
// endpoint, with an explicit Content-Type from magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("extractor: creating form part: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("extractor: writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("extractor: closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("extractor: creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extractor: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor: API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	return "application/octet-stream"
}
