package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchor_SendsHashWithAuth(t *testing.T) {
	var got anchorRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/internal/anchors", r.URL.Path)
		require.Equal(t, "Bearer ledger-secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnchorResult{Verified: true, TxID: "tx-77", Hash: got.Hash})
	}))
	defer server.Close()

	c := NewLedgerClient(server.URL, "ledger-secret")
	result, err := c.Anchor(context.Background(), "doc-1", "cafe01")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "cafe01", got.Hash)
	assert.True(t, result.Verified)
	assert.Equal(t, "tx-77", result.TxID)
}

func TestAnchor_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "anchor rejected", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewLedgerClient(server.URL, "")
	_, err := c.Anchor(context.Background(), "doc-1", "cafe01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestProof_FetchesRecordedAnchor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/internal/anchors/doc-9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnchorResult{Verified: true, TxID: "tx-9", Hash: "beef"})
	}))
	defer server.Close()

	c := NewLedgerClient(server.URL, "secret")
	result, err := c.Proof(context.Background(), "doc-9")
	require.NoError(t, err)
	assert.Equal(t, "tx-9", result.TxID)
	assert.Equal(t, "beef", result.Hash)
}
