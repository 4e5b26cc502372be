package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"broll/internal/api"
)

// errTaskNotFound is returned when the daemon does not know a task id.
var errTaskNotFound = errors.New("task not found")

type apiClient struct {
	base  *url.URL
	token string
	http  *http.Client
	// upload has no overall timeout; uploads can be large.
	upload *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	raw := strings.TrimSpace(baseURL)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "http", Host: "127.0.0.1:5000"}
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &apiClient{
		base:   base,
		token:  strings.TrimSpace(token),
		http:   &http.Client{Timeout: 15 * time.Second},
		upload: &http.Client{},
	}
}

func (c *apiClient) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// Submit uploads a local video file and returns the task id.
func (c *apiClient) Submit(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("video", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.upload.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", responseError("upload", resp)
	}
	var payload api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.TaskID == "" {
		return "", errors.New("upload response missing task_id")
	}
	return payload.TaskID, nil
}

// Status fetches the current state of a task.
func (c *apiClient) Status(ctx context.Context, id string) (api.StatusResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/status/"+url.PathEscape(id), nil)
	if err != nil {
		return api.StatusResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return api.StatusResponse{}, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return api.StatusResponse{}, responseError("status", resp)
	}
	var payload api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.StatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	if payload.Status == api.StatusNotFound {
		return payload, errTaskNotFound
	}
	return payload, nil
}

// Cancel requests cancellation of a queued or processing task.
func (c *apiClient) Cancel(ctx context.Context, id string) (api.CancelResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/cancel/"+url.PathEscape(id), nil)
	if err != nil {
		return api.CancelResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return api.CancelResponse{}, fmt.Errorf("cancel: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return api.CancelResponse{}, errTaskNotFound
	default:
		return api.CancelResponse{}, responseError("cancel", resp)
	}
	var payload api.CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.CancelResponse{}, fmt.Errorf("decode cancel response: %w", err)
	}
	return payload, nil
}

// Download streams the finished video for id into dest. When dest is a
// directory the server-provided file name is used. It returns the written path.
func (c *apiClient) Download(ctx context.Context, id, dest string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/download/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "video/mp4")
	resp, err := c.upload.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", responseError("download", resp)
	}

	target := dest
	if target == "" {
		target = "."
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, attachmentName(resp.Header.Get("Content-Disposition"), id))
	}

	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return target, nil
}

func attachmentName(disposition, id string) string {
	fallback := "output_" + id + ".mp4"
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}
	name := filepath.Base(strings.TrimSpace(params["filename"]))
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}

func responseError(op string, resp *http.Response) error {
	var payload api.ErrorResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s: %s (HTTP %d)", op, payload.Error, resp.StatusCode)
	}
	return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
}
