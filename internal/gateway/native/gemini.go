// internal/gateway/native/gemini.go
package native

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/gateway"

	"resty.dev/v3"
)

// DefaultBaseURL Gemini REST 接口地址
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client 基于 Gemini REST API 的原生生成通道
type Client struct {
	baseURL string
	client  *resty.Client
}

// NewClient 创建原生客户端；baseURL 为空时使用官方地址
func NewClient(baseURL string, client *resty.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = gateway.NewHTTPClient("gemini", 120*time.Second)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateText 调用 generateContent
func (c *Client) GenerateText(ctx context.Context, req gateway.NativeTextRequest) (string, error) {
	body := map[string]interface{}{
		"contents": []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		body["systemInstruction"] = content{Parts: []part{{Text: req.SystemInstruction}}}
	}

	var response generateContentResponse
	if err := c.call(ctx, req.APIKey, req.Model, "generateContent", body, &response); err != nil {
		return "", err
	}
	if len(response.Candidates) == 0 {
		return "", apperrors.NewExtractionError("text", req.Model, "gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range response.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// GenerateImage imagen 模型走 predict，其余模型走 generateContent 的图像模态
func (c *Client) GenerateImage(ctx context.Context, req gateway.NativeImageRequest) (*gateway.VisualAsset, error) {
	if strings.HasPrefix(req.Model, "imagen") {
		return c.predictImage(ctx, req)
	}

	body := map[string]interface{}{
		"contents": []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"IMAGE"},
		},
	}

	var response generateContentResponse
	if err := c.call(ctx, req.APIKey, req.Model, "generateContent", body, &response); err != nil {
		return nil, err
	}
	for _, candidate := range response.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return &gateway.VisualAsset{Base64: p.InlineData.Data, MIMEType: p.InlineData.MimeType}, nil
			}
		}
	}
	return nil, apperrors.NewExtractionError("image", req.Model, "")
}

func (c *Client) predictImage(ctx context.Context, req gateway.NativeImageRequest) (*gateway.VisualAsset, error) {
	body := map[string]interface{}{
		"instances":  []map[string]string{{"prompt": req.Prompt}},
		"parameters": map[string]interface{}{"sampleCount": 1},
	}

	var response struct {
		Predictions []struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
			MimeType           string `json:"mimeType"`
		} `json:"predictions"`
	}
	if err := c.call(ctx, req.APIKey, req.Model, "predict", body, &response); err != nil {
		return nil, err
	}
	if len(response.Predictions) == 0 || response.Predictions[0].BytesBase64Encoded == "" {
		return nil, apperrors.NewExtractionError("image", req.Model, "")
	}
	return &gateway.VisualAsset{
		Base64:   response.Predictions[0].BytesBase64Encoded,
		MIMEType: response.Predictions[0].MimeType,
	}, nil
}

// call 发送请求并解码响应
func (c *Client) call(ctx context.Context, apiKey, model, method string, body, out interface{}) error {
	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, model, method)

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", apiKey).
		SetBody(body).
		Post(url)
	if err != nil {
		return apperrors.NewProviderError(0, "", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return apperrors.NewProviderError(resp.StatusCode(), errorMessage(resp.Bytes()), nil)
	}

	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return apperrors.NewExtractionError("response", model, "gemini response is not valid JSON")
	}
	return nil
}

// errorMessage 优先取 Gemini 错误对象中的 message
func errorMessage(body []byte) string {
	var errorResp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != nil && errorResp.Error.Message != "" {
		return errorResp.Error.Message
	}
	return strings.TrimSpace(string(body))
}

var _ gateway.NativeGenerator = (*Client)(nil)
