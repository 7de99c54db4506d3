package paywall

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. The Paid flag is written only by the webhook
// reconciler; client-facing code reads it through issued token claims.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Paid           bool       `bun:"paid,notnull,default:false" json:"paid"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// PaymentStatus is the provider-reported status of a payment
type PaymentStatus = string

const (
	// PaymentStatusPending means the provider has not settled the payment
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusApproved is the only status that grants entitlement
	PaymentStatusApproved PaymentStatus = "approved"
	// PaymentStatusRejected means the provider declined the payment
	PaymentStatusRejected PaymentStatus = "rejected"
)

// PaymentRecord is an append-only fact tied to the provider's payment id.
// Records are never updated in place; the unique payment_id constraint is
// the idempotency key for at-least-once webhook delivery.
type PaymentRecord struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PaymentID     string         `bun:"payment_id,notnull,unique" json:"payment_id"`
	UserID        uuid.UUID      `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Status        PaymentStatus  `bun:"status,notnull" json:"status"`
	Amount        float64        `bun:"amount" json:"amount"`
	Payload       map[string]any `bun:"payload,type:jsonb" json:"payload,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
