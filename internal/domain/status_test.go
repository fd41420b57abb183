package domain

import "testing"

func TestOrderStatusDisplayName(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   string
	}{
		{OrderStatusNew, "New"},
		{OrderStatusSave, "Save"},
		{OrderStatusSubmitted, "Submitted"},
		{OrderStatusAccepted, "Accepted"},
		{OrderStatusRejected, "Rejected"},
		{OrderStatus("bogus"), ""},
	}

	for _, tt := range tests {
		if got := tt.status.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseOrderStatusDisplayName_RoundTrip(t *testing.T) {
	for status, display := range displayNames {
		if got := ParseOrderStatusDisplayName(display); got != status {
			t.Errorf("ParseOrderStatusDisplayName(%q) = %q, want %q", display, got, status)
		}
	}
}

// Неизвестное имя статуса сводится к Submitted; на это поведение
// завязаны существующие клиенты API.
func TestParseOrderStatusDisplayName_UnknownFallsBackToSubmitted(t *testing.T) {
	for _, name := range []string{"", "submitted", "ACCEPTED", "Shipped"} {
		if got := ParseOrderStatusDisplayName(name); got != OrderStatusSubmitted {
			t.Errorf("ParseOrderStatusDisplayName(%q) = %q, want submitted fallback", name, got)
		}
	}
}

func TestOrderStatusValidAndTerminal(t *testing.T) {
	if OrderStatus("bogus").Valid() {
		t.Error("bogus status must not be valid")
	}
	if !OrderStatusNew.Valid() {
		t.Error("new status must be valid")
	}
	if OrderStatusNew.Terminal() || OrderStatusSubmitted.Terminal() {
		t.Error("new/submitted are not terminal")
	}
	if !OrderStatusAccepted.Terminal() || !OrderStatusRejected.Terminal() {
		t.Error("accepted/rejected are terminal")
	}
}

func TestPaymentModeValid(t *testing.T) {
	for _, mode := range []PaymentMode{PaymentModeCash, PaymentModeCard, PaymentModeTransfer} {
		if !mode.Valid() {
			t.Errorf("mode %q must be valid", mode)
		}
	}
	if PaymentMode("crypto").Valid() {
		t.Error("unknown payment mode must not be valid")
	}
}
