package collab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// HTTPClient 三个协作方共用的 HTTP/JSON 客户端底座。
// 每个协作方一个实例，各自的 URL 与超时来自配置。
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

func newHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// post 发送 JSON 请求并解码 JSON 响应。非 200 一律视为协作方错误。
func (c *HTTPClient) post(ctx context.Context, reqBody, respBody any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collaborator error (status %d): %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// encodeSamples 把 float32 PCM 按小端序编码为 Base64，作为音频载荷传给协作方。
func encodeSamples(samples []float32) string {
	buf := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

type audioRequest struct {
	Audio      string `json:"audio"` // Base64 小端 float32 PCM
	SampleRate int    `json:"sample_rate"`
}

// HTTPTranscriber 通过 HTTP 调用转写协作方。
type HTTPTranscriber struct {
	*HTTPClient
}

func NewHTTPTranscriber(url string, timeout time.Duration) *HTTPTranscriber {
	return &HTTPTranscriber{newHTTPClient(url, timeout)}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (TranscriptResult, error) {
	var out TranscriptResult
	err := t.post(ctx, audioRequest{Audio: encodeSamples(samples), SampleRate: sampleRate}, &out)
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("transcribe: %w", err)
	}
	return out, nil
}

// HTTPAcoustic 通过 HTTP 调用声学分析协作方。
type HTTPAcoustic struct {
	*HTTPClient
}

func NewHTTPAcoustic(url string, timeout time.Duration) *HTTPAcoustic {
	return &HTTPAcoustic{newHTTPClient(url, timeout)}
}

func (a *HTTPAcoustic) Analyze(ctx context.Context, samples []float32, sampleRate int) (AcousticResult, error) {
	var out AcousticResult
	err := a.post(ctx, audioRequest{Audio: encodeSamples(samples), SampleRate: sampleRate}, &out)
	if err != nil {
		return AcousticResult{}, fmt.Errorf("acoustic analyze: %w", err)
	}
	return out, nil
}

type extractRequest struct {
	// Transcript 迄今累计的全量转写，不是最新片段。
	Transcript string `json:"transcript"`
	// Confidence 最新加权置信度；低于阈值时协作方应放宽解析（部分抽取）。
	Confidence float64 `json:"confidence"`
}

// HTTPExtractor 通过 HTTP 调用实体抽取协作方。
type HTTPExtractor struct {
	*HTTPClient
}

func NewHTTPExtractor(url string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{newHTTPClient(url, timeout)}
}

func (e *HTTPExtractor) Extract(ctx context.Context, transcript string, confidence float64) (EntityResult, error) {
	var out EntityResult
	err := e.post(ctx, extractRequest{Transcript: transcript, Confidence: confidence}, &out)
	if err != nil {
		return EntityResult{}, fmt.Errorf("extract entities: %w", err)
	}
	return out, nil
}
