package paywall

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Payments is the append-only payment record store. There is deliberately no
// update method: a payment fact is inserted once, keyed by the provider's
// payment id, and duplicates are swallowed at the constraint level.
type Payments interface {
	repository.Repository[*PaymentRecord]

	// Insert appends a record unless its payment id is already present.
	// The returned bool reports whether a row was actually written, which
	// lets callers distinguish first delivery from duplicates without a
	// pre-check-then-insert race.
	Insert(ctx context.Context, record *PaymentRecord) (bool, error)
	InsertTx(ctx context.Context, tx bun.IDB, record *PaymentRecord) (bool, error)

	GetByPaymentID(ctx context.Context, paymentID string) (*PaymentRecord, error)
	GetByPaymentIDTx(ctx context.Context, tx bun.IDB, paymentID string) (*PaymentRecord, error)
}

type payments struct {
	repository.Repository[*PaymentRecord]
	db *bun.DB
}

var (
	_ Payments                              = (*payments)(nil)
	_ repository.Repository[*PaymentRecord] = (*payments)(nil)
)

func NewPaymentsRepository(db *bun.DB) Payments {
	repo := repository.NewRepository[*PaymentRecord](db, repository.ModelHandlers[*PaymentRecord]{
		NewRecord: func() *PaymentRecord { return &PaymentRecord{} },
		GetID: func(p *PaymentRecord) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *PaymentRecord, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "payment_id"
		},
	})

	return &payments{
		Repository: repo,
		db:         db,
	}
}

func (a *payments) Insert(ctx context.Context, record *PaymentRecord) (bool, error) {
	return a.InsertTx(ctx, a.db, record)
}

func (a *payments) InsertTx(ctx context.Context, tx bun.IDB, record *PaymentRecord) (bool, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (payment_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (a *payments) GetByPaymentID(ctx context.Context, paymentID string) (*PaymentRecord, error) {
	return a.GetByPaymentIDTx(ctx, a.db, paymentID)
}

func (a *payments) GetByPaymentIDTx(ctx context.Context, tx bun.IDB, paymentID string) (*PaymentRecord, error) {
	record := &PaymentRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.payment_id = ?", paymentID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"payment_id": paymentID,
				})
		}
		return nil, err
	}

	return record, nil
}
