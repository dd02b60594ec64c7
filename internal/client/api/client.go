// Package api is a thin HTTP client for the filevault server. It keeps the
// current token pair in memory and attaches the access token to
// authenticated calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TokenPair mirrors the token response returned by the server.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	SessionID        string    `json:"sessionId"`
}

// FileRecord mirrors a file metadata entry returned by the server.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Extension  string    `json:"extension,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// FilePage mirrors one page of the file listing.
type FilePage struct {
	Items    []FileRecord `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Pages    int64        `json:"pages"`
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenPair
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Tokens returns the pair obtained by the last Signup, Signin, or Refresh.
func (c *Client) Tokens() *TokenPair {
	return c.tokens
}

// SetTokens installs a previously saved pair, e.g. restored from disk.
func (c *Client) SetTokens(pair *TokenPair) {
	c.tokens = pair
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) authRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("not signed in")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Message != "" {
			return fmt.Errorf("server: %s", e.Message)
		}
		return fmt.Errorf("server: %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Signup registers a new account and stores the returned token pair.
func (c *Client) Signup(ctx context.Context, id, password string) error {
	var pair TokenPair
	err := c.postJSON(ctx, "/signup", map[string]string{"id": id, "password": password}, &pair)
	if err != nil {
		return err
	}
	c.tokens = &pair
	return nil
}

// Signin authenticates and stores the returned token pair.
func (c *Client) Signin(ctx context.Context, id, password string) error {
	var pair TokenPair
	err := c.postJSON(ctx, "/signin", map[string]string{"id": id, "password": password}, &pair)
	if err != nil {
		return err
	}
	c.tokens = &pair
	return nil
}

// Refresh rotates the stored refresh token into a fresh pair.
func (c *Client) Refresh(ctx context.Context) error {
	if c.tokens == nil {
		return fmt.Errorf("not signed in")
	}
	var pair TokenPair
	err := c.postJSON(ctx, "/signin/new_token", map[string]string{"refreshToken": c.tokens.RefreshToken}, &pair)
	if err != nil {
		return err
	}
	c.tokens = &pair
	return nil
}

// Info returns the id of the authenticated user.
func (c *Client) Info(ctx context.Context) (string, error) {
	req, err := c.authRequest(ctx, http.MethodGet, "/info", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Logout revokes the current session and drops the stored tokens.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.authRequest(ctx, http.MethodGet, "/logout", nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return err
	}
	c.tokens = nil
	return nil
}

// Upload sends the named stream as a new file and returns its metadata.
func (c *Client) Upload(ctx context.Context, name string, src io.Reader) (*FileRecord, error) {
	return c.sendFile(ctx, http.MethodPost, "/file/upload", name, src)
}

// Update replaces the contents and name of an existing file.
func (c *Client) Update(ctx context.Context, id, name string, src io.Reader) (*FileRecord, error) {
	return c.sendFile(ctx, http.MethodPut, "/file/update/"+id, name, src)
}

func (c *Client) sendFile(ctx context.Context, method, path, name string, src io.Reader) (*FileRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, src); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.authRequest(ctx, method, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var rec FileRecord
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List fetches one page of the caller's files.
func (c *Client) List(ctx context.Context, page, pageSize int) (*FilePage, error) {
	path := "/file/list?page=" + strconv.Itoa(page) + "&list_size=" + strconv.Itoa(pageSize)
	req, err := c.authRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out FilePage
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches metadata for a single file.
func (c *Client) Get(ctx context.Context, id string) (*FileRecord, error) {
	req, err := c.authRequest(ctx, http.MethodGet, "/file/"+id, nil)
	if err != nil {
		return nil, err
	}
	var out FileRecord
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download streams the file contents into dst.
func (c *Client) Download(ctx context.Context, id string, dst io.Writer) error {
	req, err := c.authRequest(ctx, http.MethodGet, "/file/download/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Message != "" {
			return fmt.Errorf("server: %s", e.Message)
		}
		return fmt.Errorf("server: %s", resp.Status)
	}

	_, err = io.Copy(dst, resp.Body)
	return err
}

// Delete removes the file. The returned flag reports whether anything was
// actually deleted.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	req, err := c.authRequest(ctx, http.MethodDelete, "/file/delete/"+id, nil)
	if err != nil {
		return false, err
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.OK, nil
}
