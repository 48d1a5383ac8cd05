// Package client is the HTTP client for the DocChain API, consumed by the
// entity store. Calls have a bounded timeout and are never retried
// automatically; the caller decides whether to retry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"docchain/filter"
	"docchain/internal/domain"
)

// API is the remote boundary of the entity store.
type API interface {
	ListDocuments(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error)
	Upload(ctx context.Context, req *UploadRequest, onProgress func(percent int)) (*domain.Document, error)
	UpdateDocument(ctx context.Context, id string, patch *DocumentPatch) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	BulkDeleteDocuments(ctx context.Context, ids []string) error
	RestoreDocument(ctx context.Context, id string) (*domain.Document, error)
	PermanentDeleteDocument(ctx context.Context, id string) error
	VerifyDocument(ctx context.Context, id string) (*VerifyOutcome, error)
	SetFavorite(ctx context.Context, id string, favorite bool) error
}

// Error is a non-2xx API response. Message carries the server-provided
// error text when the body had one.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) ListDocuments(ctx context.Context, spec *filter.Spec, sort filter.Sort) ([]domain.Document, error) {
	values := spec.Values()
	values.Set("sort", string(sort.Key))
	if sort.Ascending {
		values.Set("direction", "asc")
	} else {
		values.Set("direction", "desc")
	}

	url := fmt.Sprintf("%s/documents?%s", c.baseURL, values.Encode())

	var docs []domain.Document
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadRequest carries the file and its metadata for a multipart upload.
type UploadRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsEncrypted bool     `json:"isEncrypted,omitempty"`
	FileName    string   `json:"-"`
	FileSize    int64    `json:"-"`
	MimeType    string   `json:"-"`
	Content     io.Reader `json:"-"`
}

// Upload streams a multipart request (file + metadata JSON). onProgress, when
// non-nil, receives the percentage of the file read so far (0-100).
func (c *Client) Upload(ctx context.Context, req *UploadRequest, onProgress func(percent int)) (*domain.Document, error) {
	meta, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	content := req.Content
	if onProgress != nil && req.FileSize > 0 {
		content = &progressReader{r: req.Content, total: req.FileSize, onProgress: onProgress}
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(form, req, meta, content)
		form.Close()
		pw.CloseWithError(err)
	}()

	url := fmt.Sprintf("%s/documents/upload", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func writeUploadForm(form *multipart.Writer, req *UploadRequest, meta []byte, content io.Reader) error {
	if err := form.WriteField("metadata", string(meta)); err != nil {
		return err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	if req.MimeType != "" {
		header.Set("Content-Type", req.MimeType)
	}
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, content)
	return err
}

// progressReader reports the fraction of the upload body read so far.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		p.onProgress(percent)
	}
	return n, err
}

// DocumentPatch is a partial document update. Nil fields are left untouched.
type DocumentPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsEncrypted *bool     `json:"isEncrypted,omitempty"`
}

func (c *Client) UpdateDocument(ctx context.Context, id string, patch *DocumentPatch) (*domain.Document, error) {
	url := fmt.Sprintf("%s/documents/%s", c.baseURL, id)

	var doc domain.Document
	if err := c.doJSON(ctx, http.MethodPut, url, patch, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/documents/%s", c.baseURL, id)
	return c.doJSON(ctx, http.MethodDelete, url, nil, nil)
}

func (c *Client) BulkDeleteDocuments(ctx context.Context, ids []string) error {
	url := fmt.Sprintf("%s/documents/bulk-delete", c.baseURL)
	payload := map[string][]string{"ids": ids}
	return c.doJSON(ctx, http.MethodPost, url, payload, nil)
}

func (c *Client) RestoreDocument(ctx context.Context, id string) (*domain.Document, error) {
	url := fmt.Sprintf("%s/documents/%s/restore", c.baseURL, id)

	var doc domain.Document
	if err := c.doJSON(ctx, http.MethodPost, url, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) PermanentDeleteDocument(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/documents/%s/permanent", c.baseURL, id)
	return c.doJSON(ctx, http.MethodDelete, url, nil, nil)
}

type VerifyOutcome struct {
	Verified       bool   `json:"verified"`
	BlockchainHash string `json:"blockchainHash"`
	TxID           string `json:"txId,omitempty"`
}

func (c *Client) VerifyDocument(ctx context.Context, id string) (*VerifyOutcome, error) {
	url := fmt.Sprintf("%s/documents/%s/verify", c.baseURL, id)

	var outcome VerifyOutcome
	if err := c.doJSON(ctx, http.MethodPost, url, nil, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *Client) SetFavorite(ctx context.Context, id string, favorite bool) error {
	url := fmt.Sprintf("%s/favorites/%s", c.baseURL, id)
	method := http.MethodPost
	if !favorite {
		method = http.MethodDelete
	}
	return c.doJSON(ctx, method, url, nil, nil)
}

// doJSON sends an optional JSON body and decodes an optional JSON response.
func (c *Client) doJSON(ctx context.Context, method, url string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &Error{Status: resp.StatusCode, Message: resp.Status}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
