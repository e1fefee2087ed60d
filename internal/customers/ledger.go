package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/money"
)

// Entry is one order's contribution to a customer's ledger.
type Entry struct {
	Phone      string
	Name       string
	Email      string
	City       string
	OrderTotal decimal.Decimal
}

// Ledger keeps per-phone order counts and lifetime spend.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger builds a ledger over the customers repository.
func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("customers repository required")
	}
	return &Ledger{repo: repo, now: time.Now}, nil
}

// Upsert records entry against the customer keyed by phone inside tx,
// creating the customer on first sight. Counters are incremented by the
// store, never read back and rewritten.
func (l *Ledger) Upsert(ctx context.Context, tx *gorm.DB, entry Entry) (*models.Customer, error) {
	entry.Phone = strings.TrimSpace(entry.Phone)
	if entry.Phone == "" {
		return nil, errors.New("customer phone required")
	}
	if entry.OrderTotal.IsNegative() {
		return nil, errors.New("order total must not be negative")
	}
	return l.repo.WithTx(tx).Upsert(ctx, entry, l.now().UTC())
}

// Repository persists customer ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, entry Entry, at time.Time) (*models.Customer, error)
	FindByPhone(ctx context.Context, phone string) (*models.Customer, error)
	FindDrift(ctx context.Context, limit int) ([]Drift, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert is a single INSERT .. ON CONFLICT (phone) DO UPDATE. Name and city
// are last-write-wins, email only moves when a new one is supplied.
func (r *repository) Upsert(ctx context.Context, entry Entry, at time.Time) (*models.Customer, error) {
	row := models.Customer{
		ID:          uuid.New(),
		Phone:       entry.Phone,
		Name:        strings.TrimSpace(entry.Name),
		Email:       optionalEmail(entry.Email),
		City:        strings.TrimSpace(entry.City),
		TotalOrders: 1,
		TotalSpent:  money.Round(entry.OrderTotal),
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "phone"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "name"}, Value: gorm.Expr("excluded.name")},
			{Column: clause.Column{Name: "city"}, Value: gorm.Expr("excluded.city")},
			{Column: clause.Column{Name: "email"}, Value: gorm.Expr("COALESCE(excluded.email, customers.email)")},
			{Column: clause.Column{Name: "total_orders"}, Value: gorm.Expr("customers.total_orders + 1")},
			{Column: clause.Column{Name: "total_spent"}, Value: gorm.Expr("customers.total_spent + excluded.total_spent")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return r.FindByPhone(ctx, entry.Phone)
}

// FindByPhone returns nil, nil when the phone has never ordered.
func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("phone = ?", strings.TrimSpace(phone)).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func optionalEmail(email string) *string {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	return &email
}
