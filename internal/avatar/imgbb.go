package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HostClient talks to the image-hosting HTTP API (ImgBB-shaped): a GET on
// {base}/{code}/{filename} answers 200 while the image is live, and a
// multipart POST to the upload endpoint returns the public URL.
type HostClient struct {
	baseURL    string // e.g. https://i.ibb.co/
	uploadURL  string // e.g. https://api.imgbb.com/1/upload
	key        string
	expiration int // seconds
	httpClient *http.Client
}

// HostConfig configures the image host client.
type HostConfig struct {
	BaseURL    string
	UploadURL  string
	Key        string
	Expiration int
	HTTPClient *http.Client // optional, defaults to a 30s-timeout client
}

func NewHostClient(cfg HostConfig) *HostClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HostClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		uploadURL:  cfg.UploadURL,
		key:        cfg.Key,
		expiration: cfg.Expiration,
		httpClient: client,
	}
}

// ImageURL builds the public URL for a stored image.
func (h *HostClient) ImageURL(code, filename string) string {
	return h.baseURL + "/" + code + "/" + filename
}

// Exists checks whether the image behind url is still served. Network
// errors count as "not live": the caller falls back to re-uploading.
func (h *HostClient) Exists(ctx context.Context, imageURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload posts the image bytes under the asserted filename and returns the
// host-assigned public URL.
func (h *HostClient) Upload(ctx context.Context, filename string, image []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("key", h.key); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := w.WriteField("name", filename); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := w.WriteField("expiration", strconv.Itoa(h.expiration)); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	if parsed.Data.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return parsed.Data.URL, nil
}

// CodeFromURL extracts the host-assigned code: the first path segment of
// the public URL ("https://i.ibb.co/<code>/<filename>").
func CodeFromURL(publicURL string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" {
		return "", fmt.Errorf("unexpected public url shape: %s", publicURL)
	}
	return segments[0], nil
}
