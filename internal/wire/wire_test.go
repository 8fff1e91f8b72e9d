package wire

import (
	"testing"

	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
)

func TestFormatDecimal_NoFloatArtifacts(t *testing.T) {
	got := FormatDecimal(0.1 + 0.2)
	if got != "0.3" {
		t.Fatalf("FormatDecimal(0.1+0.2) = %q, want %q", got, "0.3")
	}
}

func TestNewOrderRequest_ALOTif(t *testing.T) {
	req := NewOrderRequest(10001, orderstate.Buy, 1.5, 2.0)
	if req.OrderType.Limit.Tif != "Alo" {
		t.Fatalf("expected Alo tif, got %q", req.OrderType.Limit.Tif)
	}
	if !req.IsBuy {
		t.Fatal("expected IsBuy true for Buy side")
	}
	if req.Price != "1.5" || req.Size != "2" {
		t.Fatalf("unexpected price/size: %q %q", req.Price, req.Size)
	}
}

func TestParseBatchStatuses_OK(t *testing.T) {
	body := []byte(`{"status":"ok","response":{"data":{"statuses":[{"resting":{"oid":5}},{"error":"boom"}]}}}`)
	statuses := ParseBatchStatuses(body)
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Resting == nil || statuses[0].Resting.OID != 5 {
		t.Fatalf("expected resting oid 5, got %+v", statuses[0])
	}
	if statuses[1].Error != "boom" {
		t.Fatalf("expected error 'boom', got %+v", statuses[1])
	}
}

func TestParseBatchStatuses_NotOK(t *testing.T) {
	body := []byte(`{"status":"err"}`)
	if statuses := ParseBatchStatuses(body); statuses != nil {
		t.Fatalf("expected nil statuses for non-ok response, got %v", statuses)
	}
}

func TestParseBatchStatuses_Malformed(t *testing.T) {
	if statuses := ParseBatchStatuses([]byte("not json")); statuses != nil {
		t.Fatalf("expected nil for malformed body, got %v", statuses)
	}
}

func TestIsALOCrossRejection(t *testing.T) {
	if !IsALOCrossRejection("Post-only would take, cancelling") {
		t.Fatal("expected true for post-only rejection")
	}
	if IsALOCrossRejection("some other error") {
		t.Fatal("expected false for unrelated error")
	}
}

func TestIsInsufficientBalanceRejection(t *testing.T) {
	if !IsInsufficientBalanceRejection("Insufficient spot balance for order") {
		t.Fatal("expected true")
	}
}

func TestIsCannotModifyRejection(t *testing.T) {
	if !IsCannotModifyRejection("error: Cannot modify order") {
		t.Fatal("expected true")
	}
}
