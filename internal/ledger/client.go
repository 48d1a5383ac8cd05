// Package ledger talks to the anchor service that records document hashes.
// The service is a stand-in: it acknowledges anchors with a transaction id
// but there is no real chain behind it.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client interface {
	Anchor(ctx context.Context, docID string, hash string) (*AnchorResult, error)
	Proof(ctx context.Context, docID string) (*AnchorResult, error)
}

type LedgerClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewLedgerClient(baseURL, secret string) *LedgerClient {
	return &LedgerClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type AnchorResult struct {
	Verified bool   `json:"verified"`
	TxID     string `json:"tx_id"`
	Hash     string `json:"hash"`
}

type anchorRequest struct {
	DocumentID string `json:"document_id"`
	Hash       string `json:"hash"`
}

// Anchor submits a document hash to the ledger service.
func (l *LedgerClient) Anchor(ctx context.Context, docID string, hash string) (*AnchorResult, error) {
	url := fmt.Sprintf("%s/internal/anchors", l.baseURL)

	body, err := json.Marshal(anchorRequest{DocumentID: docID, Hash: hash})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.secret)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf(
			"ledger anchor error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	var result AnchorResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Proof fetches the recorded anchor for a document, if any.
func (l *LedgerClient) Proof(ctx context.Context, docID string) (*AnchorResult, error) {
	url := fmt.Sprintf("%s/internal/anchors/%s", l.baseURL, docID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+l.secret)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf(
			"ledger proof error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	var result AnchorResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}
