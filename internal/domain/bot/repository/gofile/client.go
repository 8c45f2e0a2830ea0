// Package gofile uploads files to gofile.io
package gofile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/entities"
)

// GlobalServer is the region-agnostic upload endpoint tried after the listed servers
const GlobalServer = "upload"

// Client talks to the Gofile HTTP API
type Client struct {
	apiURL    string
	token     string
	http      *http.Client
	uploadURL func(server string) string
	logger    zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithUploadURL overrides how a server name becomes an upload URL
func WithUploadURL(fn func(server string) string) Option {
	return func(c *Client) {
		c.uploadURL = fn
	}
}

// NewClient creates a Gofile client. token may be empty for guest uploads.
func NewClient(apiURL, token string, httpClient *http.Client, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiURL:    apiURL,
		token:     token,
		http:      httpClient,
		uploadURL: defaultUploadURL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultUploadURL(server string) string {
	if server == GlobalServer {
		return "https://upload.gofile.io/uploadfile"
	}
	return fmt.Sprintf("https://%s.gofile.io/contents/uploadfile", server)
}

type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type serversData struct {
	Servers []struct {
		Name string `json:"name"`
		Zone string `json:"zone"`
	} `json:"servers"`
}

type uploadData struct {
	DownloadPage string `json:"downloadPage"`
	DirectLink   string `json:"directLink"`
	ID           string `json:"id"`
	FileID       string `json:"fileId"`
}

// Servers returns the servers advertised by the API followed by the global
// endpoint. A failed lookup degrades to the global endpoint alone.
func (c *Client) Servers(ctx context.Context) ([]string, error) {
	servers, err := c.listServers(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Gofile server lookup failed, using global endpoint")
	}
	return append(servers, GlobalServer), nil
}

func (c *Client) listServers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/servers", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	var out envelope[serversData]
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	names := make([]string, 0, len(out.Data.Servers))
	for _, s := range out.Data.Servers {
		if s.Name != "" && s.Name != GlobalServer {
			names = append(names, s.Name)
		}
	}
	return names, nil
}

// Upload streams the file at path to server
func (c *Client) Upload(ctx context.Context, server, path string) (*entities.HostedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL(server), pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var out envelope[uploadData]
	if err := c.do(req, &out); err != nil {
		_ = pr.CloseWithError(err)
		return nil, fmt.Errorf("upload to %s: %w", server, err)
	}
	if out.Data.DownloadPage == "" {
		return nil, fmt.Errorf("upload to %s: response has no download page", server)
	}

	fileID := out.Data.ID
	if fileID == "" {
		fileID = out.Data.FileID
	}

	return &entities.HostedFile{
		DownloadPage: out.Data.DownloadPage,
		DirectLink:   out.Data.DirectLink,
		FileID:       fileID,
		Server:       server,
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// do sends req and decodes a status envelope into out
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var status struct {
		Status string `json:"status"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if status.Status != "ok" {
		return fmt.Errorf("api status %q", status.Status)
	}
	return json.Unmarshal(body, out)
}
