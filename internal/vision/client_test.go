package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_DetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "people", r.URL.Query().Get("features"))
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		_, _ = w.Write([]byte(`{
			"peopleResult": {"values": [
				{"boundingBox": {"x": 10, "y": 20, "w": 30, "h": 40}, "confidence": 0.95},
				{"boundingBox": {"x": 1, "y": 2, "w": 3, "h": 4}, "confidence": 0.2}
			]}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(ClientConfig{Endpoint: server.URL, APIKey: "secret"})

	boxes, err := client.DetectFaces(context.Background(), []byte("png-bytes"), 0.5)
	require.NoError(t, err)
	// The low-confidence detection is filtered out.
	assert.Equal(t, []Box{{X: 10, Y: 20, Width: 30, Height: 40}}, boxes)
}

func TestHTTPClient_DetectText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "read", r.URL.Query().Get("features"))
		_, _ = w.Write([]byte(`{
			"readResult": {"blocks": [{"lines": [
				{"text": "AB-123-C", "boundingPolygon": [
					{"x": 5, "y": 8}, {"x": 50, "y": 8}, {"x": 50, "y": 20}, {"x": 5, "y": 20}
				]}
			]}]}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(ClientConfig{Endpoint: server.URL})

	lines, err := client.DetectText(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "AB-123-C", lines[0].Text)
	assert.Equal(t, Box{X: 5, Y: 8, Width: 45, Height: 12}, lines[0].Box)
}

func TestHTTPClient_DetectText_RotatedPolygon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"readResult": {"blocks": [{"lines": [
				{"text": "tilted", "boundingPolygon": [
					{"x": 10, "y": 0}, {"x": 20, "y": 10}, {"x": 10, "y": 20}, {"x": 0, "y": 10}
				]}
			]}]}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(ClientConfig{Endpoint: server.URL})

	lines, err := client.DetectText(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, Box{X: 0, Y: 0, Width: 20, Height: 20}, lines[0].Box)
}

func TestHTTPClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewHTTPClient(ClientConfig{Endpoint: server.URL})

	_, err := client.DetectFaces(context.Background(), nil, 0.5)
	assert.ErrorContains(t, err, "401")
}
