// Package wire encodes and decodes the Hyperliquid exchange's order and
// batch-response shapes. Signing and transport are out of scope (see
// internal/exchange); this package only knows how to shape payloads and
// parse responses.
package wire

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AlliedToasters/hyperliquidity/internal/orderstate"
)

// orderType is the fixed ALO (Add-Liquidity-Only) time-in-force every
// order this system places uses. HIP-2 market making never crosses the
// spread, so no other TIF is ever wired.
type orderType struct {
	Limit limitOpts `json:"limit"`
}

type limitOpts struct {
	Tif string `json:"tif"`
}

var aloOrderType = orderType{Limit: limitOpts{Tif: "Alo"}}

// OrderRequest is a single order in a bulk_orders payload.
type OrderRequest struct {
	Asset      int       `json:"a"`
	IsBuy      bool      `json:"b"`
	Price      string    `json:"p"`
	Size       string    `json:"s"`
	ReduceOnly bool      `json:"r"`
	OrderType  orderType `json:"t"`
}

// ModifyRequest is a single order in a bulk_modify_orders_new payload.
type ModifyRequest struct {
	OID   int64        `json:"oid"`
	Order OrderRequest `json:"order"`
}

// CancelRequest is a single order in a bulk_cancel payload.
type CancelRequest struct {
	Asset int   `json:"a"`
	OID   int64 `json:"o"`
}

// FormatDecimal renders a float64 price or size as the decimal string
// Hyperliquid's wire format expects. The value is rounded to 15
// significant digits first, which drops float trailing-digit artifacts
// (0.1+0.2 renders as "0.3"), and trailing zeros are trimmed.
func FormatDecimal(v float64) string {
	return decimal.RequireFromString(strconv.FormatFloat(v, 'g', 15, 64)).String()
}

// NewOrderRequest builds a bulk_orders entry for a resting ALO order.
func NewOrderRequest(assetID int, side orderstate.Side, price, size float64) OrderRequest {
	return OrderRequest{
		Asset:      assetID,
		IsBuy:      side == orderstate.Buy,
		Price:      FormatDecimal(price),
		Size:       FormatDecimal(size),
		ReduceOnly: false,
		OrderType:  aloOrderType,
	}
}

// NewModifyRequest builds a bulk_modify_orders_new entry.
func NewModifyRequest(oid int64, assetID int, side orderstate.Side, price, size float64) ModifyRequest {
	return ModifyRequest{
		OID:   oid,
		Order: NewOrderRequest(assetID, side, price, size),
	}
}

// NewCancelRequest builds a bulk_cancel entry.
func NewCancelRequest(assetID int, oid int64) CancelRequest {
	return CancelRequest{Asset: assetID, OID: oid}
}

// OrderStatus is one element of a batch response's statuses array. Only
// one of Resting or Error is populated.
type OrderStatus struct {
	Resting *RestingStatus `json:"resting,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// RestingStatus reports the OID an order rested under.
type RestingStatus struct {
	OID int64 `json:"oid"`
}

type batchResponse struct {
	Status   string `json:"status"`
	Response struct {
		Data struct {
			Statuses []OrderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// ParseBatchStatuses extracts the statuses array from a raw Hyperliquid
// bulk response body. Returns nil (not an error) if the response's
// top-level status isn't "ok" or the body doesn't parse, so a malformed
// or non-ok response reads as "no statuses". The emitter does not call
// it; it reads statuses from exchange.BatchResult.
func ParseBatchStatuses(body []byte) []OrderStatus {
	var resp batchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	if resp.Status != "ok" {
		return nil
	}
	return resp.Response.Data.Statuses
}

// IsALOCrossRejection reports whether errMsg indicates an ALO order was
// rejected because it would have crossed the spread — an expected,
// silent rejection under HIP-2, not a fault.
func IsALOCrossRejection(errMsg string) bool {
	return strings.Contains(errMsg, "Post-only would take")
}

// IsInsufficientBalanceRejection reports whether errMsg indicates a
// balance-driven rejection, which triggers a cooldown rather than the
// consecutive-reject counter.
func IsInsufficientBalanceRejection(errMsg string) bool {
	return strings.Contains(errMsg, "Insufficient spot balance")
}

// IsCannotModifyRejection reports whether a modify response indicates
// the order was already filled on the exchange (a ghost).
func IsCannotModifyRejection(status string) bool {
	return strings.Contains(status, "Cannot modify")
}
