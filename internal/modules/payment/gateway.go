package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Gateway is the mobile-money provider. It never touches the ledger.
type Gateway interface {
	// AcquireToken exchanges the client credentials for a bearer token.
	AcquireToken(ctx context.Context) (string, error)
	// InitiatePush asks the provider to prompt the payer's handset.
	InitiatePush(ctx context.Context, req *PushRequest) (*PushResponse, error)
	// QueryStatus fetches the outcome of an earlier push.
	QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error)
}

type PushRequest struct {
	Amount          decimal.Decimal
	PartyA          string
	PhoneNumber     string
	InvoiceNumber   string
	TransactionDesc string
}

type PushResponse struct {
	MerchantRequestID   string          `json:"MerchantRequestID"`
	CheckoutRequestID   string          `json:"CheckoutRequestID"`
	ResponseCode        resultCode      `json:"ResponseCode"`
	ResponseDescription string          `json:"ResponseDescription"`
	CustomerMessage     string          `json:"CustomerMessage"`
	Raw                 json.RawMessage `json:"-"`
}

type QueryResponse struct {
	ResponseCode        resultCode      `json:"ResponseCode"`
	ResponseDescription string          `json:"ResponseDescription"`
	MerchantRequestID   string          `json:"MerchantRequestID"`
	CheckoutRequestID   string          `json:"CheckoutRequestID"`
	ResultCode          resultCode      `json:"ResultCode"`
	ResultDesc          string          `json:"ResultDesc"`
	Raw                 json.RawMessage `json:"-"`
}

// GatewayAuthError is a rejected credential exchange.
type GatewayAuthError struct {
	StatusCode int
	Message    string
}

func (e *GatewayAuthError) Error() string {
	return fmt.Sprintf("gateway auth failed (%d): %s", e.StatusCode, e.Message)
}

// GatewayRequestError is a non-OK answer to a push or query.
type GatewayRequestError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayRequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s failed (%d %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s failed (%d): %s", e.Op, e.StatusCode, e.Message)
}

// resultCode accepts result codes sent either as JSON numbers or strings.
type resultCode string

func (c *resultCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = resultCode(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("result code: %w", err)
	}
	*c = resultCode(n.String())
	return nil
}

func (c resultCode) String() string { return string(c) }
