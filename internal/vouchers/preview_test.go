package vouchers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
)

type stubRepo struct {
	voucher *models.Voucher
	err     error
	lookups []string
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	s.lookups = append(s.lookups, code)
	return s.voucher, s.err
}

func (s *stubRepo) IncrementUsage(ctx context.Context, code string) error {
	return errors.New("preview must not consume vouchers")
}

func newPreview(t *testing.T, repo Repository) *PreviewService {
	t.Helper()
	svc, err := NewPreviewService(repo)
	if err != nil {
		t.Fatalf("new preview service: %v", err)
	}
	svc.now = func() time.Time { return evalNow }
	return svc
}

func TestPreviewApplyValid(t *testing.T) {
	repo := &stubRepo{voucher: activeVoucher(enums.DiscountTypePercentage, "10")}
	svc := newPreview(t, repo)

	preview, err := svc.Apply(context.Background(), " save ", decimal.NewFromInt(4500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !preview.Valid {
		t.Fatalf("expected valid preview, got %+v", preview)
	}
	if !preview.DiscountAmount.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("expected discount 450, got %s", preview.DiscountAmount)
	}
	if preview.DiscountType != enums.DiscountTypePercentage || preview.DiscountValue == nil {
		t.Fatalf("expected discount descriptor, got %+v", preview)
	}
	if len(repo.lookups) != 1 || repo.lookups[0] != "SAVE" {
		t.Fatalf("expected normalized lookup, got %v", repo.lookups)
	}
}

func TestPreviewApplyRejected(t *testing.T) {
	v := activeVoucher(enums.DiscountTypeFixed, "100")
	v.MinOrderAmount = decimal.NewFromInt(2000)
	svc := newPreview(t, &stubRepo{voucher: v})

	preview, err := svc.Apply(context.Background(), "SAVE", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("rejection should not be an error: %v", err)
	}
	if preview.Valid || preview.ReasonCode != enums.VoucherRejectionBelowMinimum {
		t.Fatalf("expected below_minimum rejection, got %+v", preview)
	}
	if !preview.DiscountAmount.IsZero() || preview.DiscountValue != nil {
		t.Fatalf("rejected preview must not describe a discount, got %+v", preview)
	}
}

func TestPreviewApplyUnknownCode(t *testing.T) {
	svc := newPreview(t, &stubRepo{})

	preview, err := svc.Apply(context.Background(), "GHOST", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.Valid || preview.ReasonCode != enums.VoucherRejectionNotFound {
		t.Fatalf("expected not_found, got %+v", preview)
	}
}

func TestPreviewApplyStoreFailureIsDependencyError(t *testing.T) {
	svc := newPreview(t, &stubRepo{err: errors.New("connection reset")})

	_, err := svc.Apply(context.Background(), "SAVE", decimal.NewFromInt(1000))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPreviewApplyValidatesInput(t *testing.T) {
	svc := newPreview(t, &stubRepo{})

	if _, err := svc.Apply(context.Background(), "   ", decimal.NewFromInt(10)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank code, got %v", err)
	}
	if _, err := svc.Apply(context.Background(), "SAVE", decimal.NewFromInt(-1)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative subtotal, got %v", err)
	}
}
