// Package tika 提供了一个与 Apache Tika 服务器交互的文本抽取客户端。
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docchat-go/internal/apperr"
	"docchat-go/internal/config"
	"docchat-go/pkg/extract"
	"docchat-go/pkg/log"
)

// Client 是 Tika 服务器的客户端，实现了 extract.Extractor。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建一个新的 Tika 客户端实例。
func NewClient(cfg config.TikaConfig) *Client {
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract 调用 Tika 的 /tika 接口提取纯文本。
func (c *Client) Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	if !extract.IsSupported(mediaType) {
		return "", fmt.Errorf("media type %q: %w", mediaType, apperr.ErrUnsupportedFormat)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty input: %w", apperr.ErrCorruptFile)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", mediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Errorf("[Tika] 调用 Tika 失败: %v", err)
		return "", fmt.Errorf("调用 Tika 失败: %v: %w", err, apperr.ErrNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNoContent:
		return "", nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// Tika 无法解析文档
		return "", fmt.Errorf("Tika 无法解析文档: %w", apperr.ErrCorruptFile)
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return "", fmt.Errorf("Tika 不支持该类型: %w", apperr.ErrUnsupportedFormat)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Errorf("[Tika] 返回错误 [%d]: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("Tika 返回错误 [%d]: %w", resp.StatusCode, apperr.ErrNetwork)
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return "", fmt.Errorf("读取 Tika 响应失败: %v: %w", err, apperr.ErrNetwork)
	}
	// Tika 会在文本两端输出空行，页之间同样以空行分隔
	return strings.TrimSpace(buf.String()), nil
}

var _ extract.Extractor = (*Client)(nil)
