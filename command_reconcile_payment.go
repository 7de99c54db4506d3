package paywall

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NotificationTypePayment is the only notification type we act on; everything
// else is acknowledged untouched so the provider does not retry it.
const NotificationTypePayment = "payment"

// ReconcilePaymentMessage is the inbound webhook notification. Only the type
// and the provider payment id are read; any other body fields are advisory
// and deliberately ignored.
type ReconcilePaymentMessage struct {
	NotificationType string `json:"type"`
	PaymentID        string `json:"payment_id"`

	OnResponse func(*ReconcileResult)
}

func (e ReconcilePaymentMessage) Type() string { return "payment.reconcile" }

// ReconcileResult reports what the reconciliation observably did. Applying
// the same notification N times yields the same end state as applying it
// once; only the first delivery can have Recorded or Entitled set.
type ReconcileResult struct {
	Skipped   bool
	Duplicate bool
	Recorded  bool
	Entitled  bool
}

// ReconcilePaymentHandler is the single writer of the user paid flag.
type ReconcilePaymentHandler struct {
	repo     RepositoryManager
	provider PaymentProvider
	sink     ActivitySink
	logger   Logger
}

func NewReconcilePaymentHandler(repo RepositoryManager, provider PaymentProvider) *ReconcilePaymentHandler {
	return &ReconcilePaymentHandler{
		repo:     repo,
		provider: provider,
		sink:     noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ReconcilePaymentHandler) WithActivitySink(sink ActivitySink) *ReconcilePaymentHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *ReconcilePaymentHandler) WithLogger(logger Logger) *ReconcilePaymentHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ReconcilePaymentHandler) Execute(ctx context.Context, event ReconcilePaymentMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during payment reconciliation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ReconcilePaymentHandler) execute(ctx context.Context, event ReconcilePaymentMessage) error {
	result := &ReconcileResult{}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(result)
		}
	}()

	if event.NotificationType != NotificationTypePayment || event.PaymentID == "" {
		h.logger.Debug("reconcile skipping notification", "type", event.NotificationType, "payment_id", event.PaymentID)
		result.Skipped = true
		return nil
	}

	// Fetch the authoritative record by id. Webhook bodies can be forged or
	// stale; status and amount must come from the provider itself.
	payment, err := h.provider.FetchPayment(ctx, event.PaymentID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to fetch payment from provider").
			WithMetadata(map[string]any{"payment_id": event.PaymentID})
	}

	userID, ok := userIDFromMetadata(payment.Metadata)
	if !ok {
		h.logger.Warn("reconcile payment has no user correlation, acknowledging", "payment_id", event.PaymentID)
		result.Skipped = true
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &PaymentRecord{
			PaymentID: payment.ID,
			UserID:    userID,
			Status:    payment.Status,
			Amount:    payment.Amount,
			Payload:   payment.Raw,
		}

		inserted, err := h.repo.Payments().InsertTx(ctx, tx, record)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert payment record")
		}

		// At-least-once delivery: a row already keyed by this payment id
		// means we processed it before. No error, no second side effect.
		if !inserted {
			result.Duplicate = true
			return nil
		}

		result.Recorded = true

		if payment.Status == PaymentStatusApproved {
			if _, err := h.repo.Users().SetPaidTx(ctx, tx, userID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to grant entitlement").
					WithMetadata(map[string]any{
						"payment_id": payment.ID,
						"user_id":    userID.String(),
					})
			}
			result.Entitled = true
		}

		return nil
	})

	if err != nil {
		result.Recorded = false
		result.Entitled = false
		return err
	}

	if result.Recorded {
		emitActivity(ctx, h.sink, h.logger, ActivityEvent{
			EventType: ActivityEventPaymentReconciled,
			UserID:    userID.String(),
			Metadata: map[string]any{
				"payment_id": payment.ID,
				"status":     payment.Status,
				"amount":     payment.Amount,
			},
		})
	}

	if result.Entitled {
		emitActivity(ctx, h.sink, h.logger, ActivityEvent{
			EventType: ActivityEventEntitlementGranted,
			UserID:    userID.String(),
			Metadata: map[string]any{
				"payment_id": payment.ID,
			},
		})
	}

	return nil
}

// userIDFromMetadata pulls the correlation id out of provider metadata.
// Providers normalize metadata keys inconsistently, so we accept the snake
// and camel case spellings.
func userIDFromMetadata(metadata map[string]any) (uuid.UUID, bool) {
	if metadata == nil {
		return uuid.Nil, false
	}

	for _, key := range []string{MetadataUserIDKey, "userId"} {
		raw, exists := metadata[key]
		if !exists {
			continue
		}

		id, err := uuid.Parse(fmt.Sprintf("%v", raw))
		if err != nil {
			continue
		}

		return id, true
	}

	return uuid.Nil, false
}
