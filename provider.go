package paywall

import "context"

// MetadataUserIDKey is the correlation key stamped into provider metadata at
// checkout time. It is the only link between an anonymous webhook delivery
// and a user account; there is no pre-shared session store.
const MetadataUserIDKey = "user_id"

// PreferenceItem is a single checkout line item
type PreferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Currency  string  `json:"currency_id"`
}

// BackURLs are the fixed redirect targets for a checkout attempt
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest describes the payment intent we open with the provider
type PreferenceRequest struct {
	Items    []PreferenceItem `json:"items"`
	BackURLs BackURLs         `json:"back_urls"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// Preference is the provider-side payment intent
type Preference struct {
	ID          string
	RedirectURL string
}

// ProviderPayment is the authoritative payment record fetched from the
// provider. Status, Amount, and Metadata come from the provider's API, never
// from a webhook body.
type ProviderPayment struct {
	ID       string
	Status   PaymentStatus
	Amount   float64
	Metadata map[string]any
	Raw      map[string]any
}

// PaymentProvider is the boundary to the external payment service. SDK and
// transport internals live behind this interface; see provider/mercadopago.
type PaymentProvider interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	FetchPayment(ctx context.Context, id string) (*ProviderPayment, error)
}
