package faceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FaceQuality contains face quality metrics reported by the detector.
type FaceQuality struct {
	Score     float64 `json:"score"`
	Blur      float64 `json:"blur"`
	PoseYaw   float64 `json:"pose_yaw"`
	PosePitch float64 `json:"pose_pitch"`
	PoseRoll  float64 `json:"pose_roll"`
	FaceSize  int     `json:"face_size"`
	IsFrontal bool    `json:"is_frontal"`
}

// DetectResult is the outcome of a presence check. Detection is
// presence-only: it carries no identity or liveness guarantee.
type DetectResult struct {
	FacesDetected int
	Confidence    float64
	Quality       *FaceQuality
}

// Present reports whether at least one face was found.
func (r *DetectResult) Present() bool { return r.FacesDetected > 0 }

// Client calls the face detection microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every call returns a canned
// positive result so the rest of the system works without the service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // detection can take a while on cold models
		},
	}
}

// LoadModel asks the service to warm its detection model. The capture
// gate stays closed until this succeeds.
func (c *Client) LoadModel(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/warmup", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(body))
	}
	return nil
}

// Detect runs a presence check on raw image bytes.
func (c *Client) Detect(ctx context.Context, image []byte) (*DetectResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image required")
	}
	payload := map[string]string{"image": base64.StdEncoding.EncodeToString(image)}
	return c.detect(ctx, payload)
}

// DetectURL runs a presence check on a stored image URL.
func (c *Client) DetectURL(ctx context.Context, imageURL string) (*DetectResult, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("image url required")
	}
	return c.detect(ctx, map[string]string{"image_url": imageURL})
}

func (c *Client) detect(ctx context.Context, payload map[string]string) (*DetectResult, error) {
	if c.Skip {
		return &DetectResult{
			FacesDetected: 1,
			Confidence:    0.95,
			Quality: &FaceQuality{
				Score:     0.85,
				Blur:      0.1,
				PoseYaw:   5.0,
				PosePitch: 3.0,
				PoseRoll:  1.0,
				FaceSize:  40000,
				IsFrontal: true,
			},
		}, nil
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		FacesDetected int          `json:"faces_detected"`
		Confidence    float64      `json:"confidence"`
		Quality       *FaceQuality `json:"quality"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &DetectResult{
		FacesDetected: out.FacesDetected,
		Confidence:    out.Confidence,
		Quality:       out.Quality,
	}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}
