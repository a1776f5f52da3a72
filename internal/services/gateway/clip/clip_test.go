package clip

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Clip {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(&Config{BaseURL: srv.URL + "/", AuthToken: "secret-token", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestCreateCharge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/charges", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var f ChargeForm
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f))
		assert.Equal(t, int64(23200), f.Amount)
		assert.Equal(t, "tok_123", f.Token)
		assert.Equal(t, "sale-1", f.Reference)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"charge_id":"ch_1","status":"approved"}`))
	})

	reply, err := c.CreateCharge(context.Background(), &ChargeForm{
		Amount: 23200, Currency: "MXN", Token: "tok_123", Reference: "sale-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch_1", reply.ID)
	assert.Equal(t, "approved", reply.Status)
	assert.True(t, reply.Paid)
	assert.Equal(t, int64(23200), reply.Amount)
	assert.Equal(t, "MXN", reply.Currency)
}

func TestCreateCharge_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"message":"card declined"}`))
	})

	_, err := c.CreateCharge(context.Background(), &ChargeForm{Amount: 100, Token: "tok"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "card declined", apiErr.Message)
	assert.False(t, apiErr.Temporary())
}

func TestCreateCheckout_FallbackKeys(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout", r.URL.Path)

		var f CheckoutForm
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f))
		assert.Equal(t, "https://shop.test/success", f.SuccessURL)
		assert.NotEmpty(t, f.ExpiresAt)

		w.Write([]byte(`{"payment_request_code":"prc_9","checkout_url":"https://pay.test/prc_9"}`))
	})

	reply, err := c.CreateCheckout(context.Background(), &CheckoutForm{
		Amount:     5000,
		Currency:   "MXN",
		Reference:  "sale-1",
		SuccessURL: "https://shop.test/success",
		CancelURL:  "https://shop.test/cancel",
		ExpiresAt:  time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, "prc_9", reply.CheckoutID)
	assert.Equal(t, "https://pay.test/prc_9", reply.PaymentURL)
	assert.Equal(t, "prc_9", reply.PaymentRequestCode)
}

func TestGetCheckout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/checkout/chk_1", r.URL.Path)
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Content-Type"))

		w.Write([]byte(`{"payment_status":"paid","amount":5000,"paid_at":"2026-01-02T03:04:05Z"}`))
	})

	st, err := c.GetCheckout(context.Background(), "chk_1")
	require.NoError(t, err)
	assert.Equal(t, "paid", st.Status)
	assert.True(t, st.Paid)
	require.NotNil(t, st.PaidAt)
	assert.Equal(t, 2026, st.PaidAt.Year())

	_, err = c.GetCheckout(context.Background(), "")
	assert.Error(t, err)
}

func TestServerErrorIsTemporary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := c.GetCheckout(context.Background(), "chk_1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "upstream down", apiErr.Body)
}
