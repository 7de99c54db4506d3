package mercadopago_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	paywall "github.com/goliatone/go-paywall"
	"github.com/goliatone/go-paywall/provider/mercadopago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreatePreference(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the preference and returns the redirect target", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":         "pref-42",
				"init_point": "https://checkout.test/pref-42",
			})
		}))
		defer server.Close()

		client := mercadopago.NewClient("secret-token", mercadopago.WithBaseURL(server.URL))

		pref, err := client.CreatePreference(ctx, paywall.PreferenceRequest{
			Items: []paywall.PreferenceItem{
				{Title: "Pro plan", Quantity: 1, UnitPrice: 9.99, Currency: "ARS"},
			},
			BackURLs: paywall.BackURLs{
				Success: "https://app.test/success",
				Failure: "https://app.test/failure",
				Pending: "https://app.test/pending",
			},
			Metadata: map[string]any{"user_id": "user-1"},
		})

		require.NoError(t, err)
		assert.Equal(t, "pref-42", pref.ID)
		assert.Equal(t, "https://checkout.test/pref-42", pref.RedirectURL)

		assert.Equal(t, "/checkout/preferences", gotPath)
		assert.Equal(t, "Bearer secret-token", gotAuth)

		items, ok := gotBody["items"].([]any)
		require.True(t, ok)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "Pro plan", item["title"])
		assert.Equal(t, "ARS", item["currency_id"])
		assert.Equal(t, 9.99, item["unit_price"])

		metadata := gotBody["metadata"].(map[string]any)
		assert.Equal(t, "user-1", metadata["user_id"])
	})

	t.Run("fails on non 2xx responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid access token"}`))
		}))
		defer server.Close()

		client := mercadopago.NewClient("bad-token", mercadopago.WithBaseURL(server.URL))

		pref, err := client.CreatePreference(ctx, paywall.PreferenceRequest{})

		assert.Nil(t, pref)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("fails when the response misses the redirect target", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"id": "pref-42"})
		}))
		defer server.Close()

		client := mercadopago.NewClient("secret-token", mercadopago.WithBaseURL(server.URL))

		pref, err := client.CreatePreference(ctx, paywall.PreferenceRequest{})

		assert.Nil(t, pref)
		assert.Error(t, err)
	})
}

func TestClient_FetchPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts status amount and metadata", func(t *testing.T) {
		var gotPath string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			json.NewEncoder(w).Encode(map[string]any{
				"id":                 123456,
				"status":             "approved",
				"transaction_amount": 9.99,
				"metadata": map[string]any{
					"user_id": "b4d0c8e4-8d2e-4f6a-9e3f-111111111111",
				},
				"payer": map[string]any{"email": "buyer@example.com"},
			})
		}))
		defer server.Close()

		client := mercadopago.NewClient("secret-token", mercadopago.WithBaseURL(server.URL))

		payment, err := client.FetchPayment(ctx, "123456")

		require.NoError(t, err)
		assert.Equal(t, "/v1/payments/123456", gotPath)
		assert.Equal(t, "123456", payment.ID)
		assert.Equal(t, paywall.PaymentStatusApproved, payment.Status)
		assert.Equal(t, 9.99, payment.Amount)
		assert.Equal(t, "b4d0c8e4-8d2e-4f6a-9e3f-111111111111", payment.Metadata["user_id"])

		// the whole body is kept for auditing
		assert.Contains(t, payment.Raw, "payer")
	})

	t.Run("tolerates missing optional fields", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
		}))
		defer server.Close()

		client := mercadopago.NewClient("secret-token", mercadopago.WithBaseURL(server.URL))

		payment, err := client.FetchPayment(ctx, "123456")

		require.NoError(t, err)
		assert.Equal(t, paywall.PaymentStatusPending, payment.Status)
		assert.Zero(t, payment.Amount)
		assert.Nil(t, payment.Metadata)
	})

	t.Run("fails on provider errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"payment not found"}`))
		}))
		defer server.Close()

		client := mercadopago.NewClient("secret-token", mercadopago.WithBaseURL(server.URL))

		payment, err := client.FetchPayment(ctx, "missing")

		assert.Nil(t, payment)
		assert.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		client := mercadopago.NewClient("secret-token", mercadopago.WithBaseURL(server.URL))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		payment, err := client.FetchPayment(cancelled, "123456")

		assert.Nil(t, payment)
		assert.Error(t, err)
	})
}
