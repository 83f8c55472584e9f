package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnrecognisedPayload = errors.New("unrecognised notification payload")

// Shape identifies which notification envelope was parsed.
type Shape string

const (
	ShapeSTKCallback Shape = "stkCallback"
	ShapeResult      Shape = "Result"
)

// Notification is the provider-neutral outcome carried by a webhook.
type Notification struct {
	Shape             Shape
	ResultCode        string
	ResultDesc        string
	CheckoutRequestID string
	Amount            *decimal.Decimal
}

type stkEnvelope struct {
	Body *struct {
		StkCallback *struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        *resultCode `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type resultEnvelope struct {
	Result *struct {
		ResultCode       *resultCode `json:"ResultCode"`
		ResultDesc       string      `json:"ResultDesc"`
		TransactionID    string      `json:"TransactionID"`
		ResultParameters *struct {
			ResultParameter resultParameters `json:"ResultParameter"`
		} `json:"ResultParameters"`
	} `json:"Result"`
}

type resultParameter struct {
	Key   string          `json:"Key"`
	Value json.RawMessage `json:"Value"`
}

// resultParameters accepts a list or, as the gateway sometimes sends, one object.
type resultParameters []resultParameter

func (p *resultParameters) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var one resultParameter
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*p = resultParameters{one}
		return nil
	}
	var many []resultParameter
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*p = many
	return nil
}

// ParseNotification tries the stkCallback envelope first, then Result.
func ParseNotification(body []byte) (*Notification, error) {
	var stk stkEnvelope
	if err := json.Unmarshal(body, &stk); err == nil && stk.Body != nil && stk.Body.StkCallback != nil && stk.Body.StkCallback.ResultCode != nil {
		cb := stk.Body.StkCallback
		n := &Notification{
			Shape:             ShapeSTKCallback,
			ResultCode:        cb.ResultCode.String(),
			ResultDesc:        cb.ResultDesc,
			CheckoutRequestID: cb.CheckoutRequestID,
		}
		if cb.CallbackMetadata != nil {
			for _, item := range cb.CallbackMetadata.Item {
				if strings.EqualFold(item.Name, "Amount") {
					amt, err := parseAmount(item.Value)
					if err != nil {
						return nil, err
					}
					n.Amount = amt
				}
			}
		}
		return n, nil
	}

	var res resultEnvelope
	if err := json.Unmarshal(body, &res); err == nil && res.Result != nil && res.Result.ResultCode != nil {
		r := res.Result
		n := &Notification{
			Shape:      ShapeResult,
			ResultCode: r.ResultCode.String(),
			ResultDesc: r.ResultDesc,
		}
		if r.ResultParameters != nil {
			for _, p := range r.ResultParameters.ResultParameter {
				if strings.EqualFold(p.Key, "Amount") {
					amt, err := parseAmount(p.Value)
					if err != nil {
						return nil, err
					}
					n.Amount = amt
				}
			}
		}
		return n, nil
	}

	return nil, ErrUnrecognisedPayload
}

func parseAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: bad Amount %s", ErrUnrecognisedPayload, raw)
	}
	return &d, nil
}
