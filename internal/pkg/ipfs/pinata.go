package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	appcfg "github.com/paperchain/core/internal/config"
	"go.uber.org/zap"
)

const (
	defaultPinataAPI     = "https://api.pinata.cloud"
	defaultPinataGateway = "https://gateway.pinata.cloud"
	maxRetrieveBytes     = 64 << 20
)

// Pinata pins content through the Pinata pinning API.
type Pinata struct {
	apiURL     string
	gatewayURL string
	jwt        string
	client     *http.Client
	logger     *zap.Logger
}

func NewPinata(opts appcfg.PinataOptions, logger *zap.Logger) (*Pinata, error) {
	jwt := strings.TrimSpace(opts.JWT)
	if jwt == "" {
		return nil, fmt.Errorf("pinata jwt is required")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultPinataAPI
	}
	gatewayURL := strings.TrimRight(strings.TrimSpace(opts.GatewayURL), "/")
	if gatewayURL == "" {
		gatewayURL = defaultPinataGateway
	}
	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pinata{
		apiURL:     apiURL,
		gatewayURL: gatewayURL,
		jwt:        jwt,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinMetadata struct {
	Name string `json:"name,omitempty"`
}

func (p *Pinata) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" {
		name = "file"
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("pinata upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("pinata upload: %w", err)
	}
	meta, _ := json.Marshal(pinMetadata{Name: name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("pinata upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("pinata upload: %w", err)
	}
	return p.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body)
}

func (p *Pinata) UploadJSON(ctx context.Context, name string, v any) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"pinataContent":  v,
		"pinataMetadata": pinMetadata{Name: name},
	})
	if err != nil {
		return "", fmt.Errorf("pinata upload json: %w", err)
	}
	return p.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
}

func (p *Pinata) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+path, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinata %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("pinata %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("pinata %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out pinResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("pinata %s: decode response: %w", path, err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pinata %s: empty hash in response", path)
	}
	return out.IpfsHash, nil
}

func (p *Pinata) Retrieve(ctx context.Context, cid string) ([]byte, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return nil, ErrNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.gatewayURL+"/ipfs/"+url.PathEscape(cid), nil)
	if err != nil {
		return nil, notFound(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("ipfs retrieve failed", zap.String("cid", cid), zap.Error(err))
		return nil, notFound(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := fmt.Errorf("gateway status %d", resp.StatusCode)
		p.logger.Warn("ipfs retrieve failed", zap.String("cid", cid), zap.Error(cause))
		return nil, notFound(cause)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRetrieveBytes))
	if err != nil {
		p.logger.Warn("ipfs retrieve failed", zap.String("cid", cid), zap.Error(err))
		return nil, notFound(err)
	}
	return data, nil
}

type pinListResponse struct {
	Count int `json:"count"`
}

func (p *Pinata) Exists(ctx context.Context, cid string) bool {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return false
	}
	q := url.Values{}
	q.Set("hashContains", cid)
	q.Set("status", "pinned")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/data/pinList?"+q.Encode(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("ipfs exists check failed", zap.String("cid", cid), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var out pinListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false
	}
	return out.Count > 0
}
