package paywall

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// CheckoutMessage opens a payment intent with the provider for one line item.
// UserID travels as preference metadata so the eventual webhook can be
// attributed back to this account.
type CheckoutMessage struct {
	UserID   string  `json:"user_id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Currency string  `json:"currency"`

	OnResponse func(*CheckoutResponse)
}

func (e CheckoutMessage) Type() string { return "payment.checkout" }

// Validate will run validation rules
func (e CheckoutMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.Required),
		validation.Field(&e.Title, validation.Required, validation.Length(1, 256)),
		validation.Field(&e.Price, validation.Required, validation.Min(0.01)),
		validation.Field(&e.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&e.Currency, validation.Required, validation.Length(3, 3)),
	)
}

// CheckoutResponse carries the provider redirect target back to the caller
type CheckoutResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
}

type CheckoutHandler struct {
	provider PaymentProvider
	urls     BackURLs
	sink     ActivitySink
	logger   Logger
}

func NewCheckoutHandler(provider PaymentProvider, urls BackURLs) *CheckoutHandler {
	return &CheckoutHandler{
		provider: provider,
		urls:     urls,
		sink:     noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *CheckoutHandler) WithActivitySink(sink ActivitySink) *CheckoutHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *CheckoutHandler) WithLogger(logger Logger) *CheckoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Execute delegates entirely to the provider: no local state is written. A
// failed checkout is retried by the user starting over, not by us.
func (h *CheckoutHandler) Execute(ctx context.Context, event CheckoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during checkout",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CheckoutHandler) execute(ctx context.Context, event CheckoutMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid checkout payload").
			WithCode(goerrors.CodeBadRequest)
	}

	req := PreferenceRequest{
		Items: []PreferenceItem{
			{
				Title:     event.Title,
				Quantity:  event.Quantity,
				UnitPrice: event.Price,
				Currency:  event.Currency,
			},
		},
		BackURLs: h.urls,
		Metadata: map[string]any{
			MetadataUserIDKey: event.UserID,
		},
	}

	pref, err := h.provider.CreatePreference(ctx, req)
	if err != nil {
		h.logger.Error("checkout create preference failed", "error", err, "user_id", event.UserID)
		return goerrors.Wrap(err, ErrPaymentProvider.Category, ErrPaymentProvider.Message).
			WithTextCode(ErrPaymentProvider.TextCode).
			WithCode(ErrPaymentProvider.Code)
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventCheckoutCreated,
		UserID:    event.UserID,
		Metadata: map[string]any{
			"preference_id": pref.ID,
			"title":         event.Title,
			"amount":        event.Price * float64(event.Quantity),
			"currency":      event.Currency,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&CheckoutResponse{
			ID:          pref.ID,
			RedirectURL: pref.RedirectURL,
		})
	}

	return nil
}
