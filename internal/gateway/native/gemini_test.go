package native

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateText(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"INT. "},{"text":"KITCHEN - NIGHT"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	text, err := client.GenerateText(context.Background(), gateway.NativeTextRequest{
		APIKey:            "g-key",
		Model:             "gemini-2.5-flash",
		Prompt:            "open the scene",
		SystemInstruction: "you are a screenwriter",
	})
	require.NoError(t, err)
	assert.Equal(t, "INT. KITCHEN - NIGHT", text)

	system, ok := body["systemInstruction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"text": "you are a screenwriter"}}, system["parts"])
}

func TestGenerateTextNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).GenerateText(context.Background(), gateway.NativeTextRequest{Model: "m"})
	assert.True(t, apperrors.IsExtractionError(err))
}

func TestGenerateImageImagenUsesPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/imagen-4.0-generate-001:predict", r.URL.Path)
		w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":"QUJD","mimeType":"image/png"}]}`))
	}))
	defer server.Close()

	asset, err := NewClient(server.URL, nil).GenerateImage(context.Background(), gateway.NativeImageRequest{
		APIKey: "k", Model: "imagen-4.0-generate-001", Prompt: "storyboard frame",
	})
	require.NoError(t, err)
	assert.Equal(t, &gateway.VisualAsset{Base64: "QUJD", MIMEType: "image/png"}, asset)
}

func TestGenerateImageInlineData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash-image:generateContent", r.URL.Path)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/jpeg","data":"WFla"}}]}}]}`))
	}))
	defer server.Close()

	asset, err := NewClient(server.URL, nil).GenerateImage(context.Background(), gateway.NativeImageRequest{
		APIKey: "k", Model: "gemini-2.5-flash-image", Prompt: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, "WFla", asset.Base64)
	assert.Equal(t, "image/jpeg", asset.MIMEType)
}

func TestProviderErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).GenerateText(context.Background(), gateway.NativeTextRequest{Model: "m"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusForbidden, appErr.StatusCode)
	assert.Equal(t, "API key not valid", appErr.Body)
}
