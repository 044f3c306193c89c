package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/shopspring/decimal"
)

func TestCloseShift_Reconciliation(t *testing.T) {
	ctx, session := setupStore(t)
	if _, err := models.OpenShift(ctx, session, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	product := seedProduct(t, ctx, session, "Coffee", 3500, 10)

	if _, err := models.RecordSale(ctx, session, &models.NewSale{
		Items:          []models.NewSaleItem{{ProductId: product.ID, Qty: 1}},
		PaymentMethod:  models.PaymentMethodCash,
		AmountReceived: decimal.NewFromInt(3500),
	}); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}

	shift, err := models.CloseShift(ctx, session, decimal.NewFromInt(4600), "evening count")
	if err != nil {
		t.Fatalf("CloseShift: %v", err)
	}
	if !shift.ExpectedCash.Equal(decimal.NewFromInt(4500)) {
		t.Fatalf("expected cash 4500, got %s", shift.ExpectedCash)
	}
	if !shift.OverShort.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected over/short +100, got %s", shift.OverShort)
	}
	if shift.Status != models.ShiftStatusClosed {
		t.Fatalf("expected closed status, got %s", shift.Status)
	}
	if shift.ClosedAt == nil {
		t.Fatal("expected closed_at set")
	}
}

func TestCloseShift_RefundsReduceExpectedCash(t *testing.T) {
	ctx, session := setupStore(t)
	if _, err := models.OpenShift(ctx, session, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	product := seedProduct(t, ctx, session, "Juice", 1200, 5)

	sale, err := models.RecordSale(ctx, session, &models.NewSale{
		Items:          []models.NewSaleItem{{ProductId: product.ID, Qty: 2}},
		PaymentMethod:  models.PaymentMethodCash,
		AmountReceived: decimal.NewFromInt(2400),
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if _, err := models.RecordRefund(ctx, session, &models.NewRefund{TransactionId: sale.ID}); err != nil {
		t.Fatalf("RecordRefund: %v", err)
	}

	shift, err := models.CloseShift(ctx, session, decimal.NewFromInt(500), "")
	if err != nil {
		t.Fatalf("CloseShift: %v", err)
	}
	if !shift.ExpectedCash.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected cash back to opening float, got %s", shift.ExpectedCash)
	}
	if !shift.OverShort.IsZero() {
		t.Fatalf("expected over/short 0, got %s", shift.OverShort)
	}
	if shift.SaleCount != 1 || shift.RefundCount != 1 {
		t.Fatalf("expected counts 1/1, got %d/%d", shift.SaleCount, shift.RefundCount)
	}
}

func TestOpenShift_SecondOpenRefused(t *testing.T) {
	ctx, session := setupStore(t)
	if _, err := models.OpenShift(ctx, session, decimal.Zero); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	_, err := models.OpenShift(ctx, session, decimal.Zero)
	if !errors.Is(err, models.ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}
}

func TestCloseShift_NoOpenShift(t *testing.T) {
	ctx, session := setupStore(t)
	_, err := models.CloseShift(ctx, session, decimal.Zero, "")
	if !errors.Is(err, models.ErrNoActiveShift) {
		t.Fatalf("expected ErrNoActiveShift, got %v", err)
	}
}

func TestOpenShift_ReopenAfterClose(t *testing.T) {
	ctx, session := setupStore(t)
	if _, err := models.OpenShift(ctx, session, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	if _, err := models.CloseShift(ctx, session, decimal.NewFromInt(100), ""); err != nil {
		t.Fatalf("CloseShift: %v", err)
	}
	second, err := models.OpenShift(ctx, session, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	current, err := models.CurrentShift(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("CurrentShift: %v", err)
	}
	if current.ID != second.ID {
		t.Fatalf("expected current shift %s, got %s", second.ID, current.ID)
	}
	shifts, err := models.ListShifts(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("ListShifts: %v", err)
	}
	if len(shifts) != 2 {
		t.Fatalf("expected 2 shifts, got %d", len(shifts))
	}
}

func TestCloseShift_SalesSplitByPaymentMethod(t *testing.T) {
	ctx, session := setupStore(t)
	if _, err := models.OpenShift(ctx, session, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	product := seedProduct(t, ctx, session, "Tea", 1000, 20)

	sell := func(method models.PaymentMethod, qty int) {
		t.Helper()
		if _, err := models.RecordSale(ctx, session, &models.NewSale{
			Items:          []models.NewSaleItem{{ProductId: product.ID, Qty: qty}},
			PaymentMethod:  method,
			AmountReceived: decimal.NewFromInt(int64(qty) * 1000),
		}); err != nil {
			t.Fatalf("RecordSale(%s): %v", method, err)
		}
	}
	sell(models.PaymentMethodCash, 1)
	sell(models.PaymentMethodTransfer, 2)
	sell(models.PaymentMethodQr, 3)

	shift, err := models.CloseShift(ctx, session, decimal.NewFromInt(1500), "")
	if err != nil {
		t.Fatalf("CloseShift: %v", err)
	}
	if !shift.CashSales.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected cash sales 1000, got %s", shift.CashSales)
	}
	if !shift.TransferSales.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected transfer sales 2000, got %s", shift.TransferSales)
	}
	if !shift.QrSales.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected qr sales 3000, got %s", shift.QrSales)
	}
	if !shift.ExpectedCash.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected cash 1500, got %s", shift.ExpectedCash)
	}
}
