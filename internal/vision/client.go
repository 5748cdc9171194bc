package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiVersion = "2023-10-01"

// ClientConfig configures the HTTP image-analysis client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// HTTPClient talks to an Azure-image-analysis shaped endpoint. One request
// per feature: PEOPLE for face boxes, READ for text lines.
type HTTPClient struct {
	cfg  ClientConfig
	http *http.Client
}

func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

type polyPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type analyzeResponse struct {
	PeopleResult struct {
		Values []struct {
			BoundingBox struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
				W float64 `json:"w"`
				H float64 `json:"h"`
			} `json:"boundingBox"`
			Confidence float64 `json:"confidence"`
		} `json:"values"`
	} `json:"peopleResult"`
	ReadResult struct {
		Blocks []struct {
			Lines []struct {
				Text            string      `json:"text"`
				BoundingPolygon []polyPoint `json:"boundingPolygon"`
			} `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
}

func (c *HTTPClient) DetectFaces(ctx context.Context, image []byte, confidenceThreshold float64) ([]Box, error) {
	resp, err := c.analyze(ctx, image, "people")
	if err != nil {
		return nil, err
	}
	var boxes []Box
	for _, person := range resp.PeopleResult.Values {
		if person.Confidence < confidenceThreshold {
			continue
		}
		boxes = append(boxes, Box{
			X:      person.BoundingBox.X,
			Y:      person.BoundingBox.Y,
			Width:  person.BoundingBox.W,
			Height: person.BoundingBox.H,
		})
	}
	return boxes, nil
}

func (c *HTTPClient) DetectText(ctx context.Context, image []byte) ([]TextLine, error) {
	resp, err := c.analyze(ctx, image, "read")
	if err != nil {
		return nil, err
	}
	var lines []TextLine
	for _, block := range resp.ReadResult.Blocks {
		for _, line := range block.Lines {
			if len(line.BoundingPolygon) == 0 {
				continue
			}
			lines = append(lines, TextLine{Text: line.Text, Box: polygonBounds(line.BoundingPolygon)})
		}
	}
	return lines, nil
}

// polygonBounds collapses a bounding polygon to its axis-aligned extent, so
// rotated text still yields a box that covers it.
func polygonBounds(points []polyPoint) Box {
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (c *HTTPClient) analyze(ctx context.Context, image []byte, feature string) (*analyzeResponse, error) {
	endpoint := fmt.Sprintf("%s/computervision/imageanalysis:analyze?api-version=%s&features=%s",
		c.cfg.Endpoint, apiVersion, url.QueryEscape(feature))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send analyze request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image analysis returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	return &parsed, nil
}
