package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// helper для создания базового заказа с двумя позициями.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:              "order-1",
		RetailerID:      "retailer-1",
		ManufacturerID:  "manufacturer-1",
		Status:          domain.OrderStatusNew,
		TotalPriceMinor: 10000,
		PaymentMode:     domain.PaymentModeCash,
		PaymentCurrency: "USD",
		Details: []domain.OrderDetail{
			{
				ID:             "detail-1",
				OrderID:        "order-1",
				ProductID:      "product-a",
				ManufacturerID: "manufacturer-1",
				Qty:            5,
				PriceMinor:     1000,
				ItemStatus:     domain.OrderStatusNew,
				IsActive:       true,
				CreatedOn:      now,
			},
			{
				ID:             "detail-2",
				OrderID:        "order-1",
				ProductID:      "product-b",
				ManufacturerID: "manufacturer-1",
				Qty:            2,
				PriceMinor:     2500,
				ItemStatus:     domain.OrderStatusNew,
				IsActive:       true,
				CreatedOn:      now,
			},
		},
		IsActive:  true,
		CreatedOn: now,
		CreatedBy: "retailer-1",
		UpdatedOn: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no retailer",
			mut: func(o *domain.Order) {
				o.RetailerID = ""
			},
		},
		{
			name: "no manufacturer",
			mut: func(o *domain.Order) {
				o.ManufacturerID = ""
			},
		},
		{
			name: "no currency",
			mut: func(o *domain.Order) {
				o.PaymentCurrency = ""
			},
		},
		{
			name: "negative total",
			mut: func(o *domain.Order) {
				o.TotalPriceMinor = -1
			},
		},
		{
			name: "no details",
			mut: func(o *domain.Order) {
				o.Details = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Details[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Details[0].PriceMinor = -5
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.TotalPriceMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

// Сумма заказа считается как qty*price по всем позициям: 5*$10 + 2*$25 = $100.
func TestOrderTotal_TwoLineScenario(t *testing.T) {
	order := makeOrder()
	if order.TotalPriceMinor != 10000 {
		t.Fatalf("expected total 10000 minor units, got %d", order.TotalPriceMinor)
	}
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("total invariant must hold: %v", errs)
	}
}

func TestOrderDetailByID(t *testing.T) {
	order := makeOrder()

	detail, ok := order.DetailByID("detail-2")
	if !ok {
		t.Fatal("expected to find detail-2")
	}
	if detail.ProductID != "product-b" {
		t.Fatalf("unexpected product: %s", detail.ProductID)
	}

	if _, ok := order.DetailByID("missing"); ok {
		t.Fatal("expected missing detail to not resolve")
	}
}
