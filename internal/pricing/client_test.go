package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scent-cart/internal/domain"
)

func TestApplyPromoRequestShape(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"total_price": 900, "percentage": 10})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	result, err := client.ApplyPromo(context.Background(), domain.PromoRequest{
		Products: []domain.PromoItem{
			{ProductID: 42, Size: "100"},
			{ProductID: 7, Quantity: 3},
		},
		Promocode: "SALE10",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/promocode/apply", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "SALE10", gotBody["promocode"])

	products, ok := gotBody["products"].([]any)
	require.True(t, ok)
	require.Len(t, products, 2)
	sized := products[0].(map[string]any)
	assert.Equal(t, "100", sized["size"])
	assert.NotContains(t, sized, "quantity", "sized items must not carry a quantity")

	assert.True(t, decimal.NewFromInt(900).Equal(result.TotalPrice))
	assert.Equal(t, float64(10), result.Percentage)
}

func TestSubmitOrderForwardsBearerToken(t *testing.T) {
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"redirectUrl": "https://pay.example/x"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	result, err := client.SubmitOrder(context.Background(), domain.OrderPayload{Name: "Ani"}, "access-token")
	require.NoError(t, err)

	assert.Equal(t, "/api/orders", gotPath)
	assert.Equal(t, "Bearer access-token", gotAuth)
	assert.Equal(t, "https://pay.example/x", result.RedirectURL)
}

func TestSubmitOrderAnonymousOmitsAuthorization(t *testing.T) {
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	_, err := client.SubmitOrder(context.Background(), domain.OrderPayload{Name: "Ani"}, "")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClientRejectsNon2xxResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such promocode", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())

	_, err := client.ApplyPromo(context.Background(), domain.PromoRequest{Promocode: "NOPE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestClientWrapsTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, time.Second, zap.NewNop())

	_, err := client.ApplyPromo(context.Background(), domain.PromoRequest{Promocode: "SALE10"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestClientHonorsContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 30*time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.SubmitOrder(ctx, domain.OrderPayload{}, "")
	assert.Error(t, err)
}
