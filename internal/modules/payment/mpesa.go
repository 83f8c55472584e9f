package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fairwayhq/fairway-backend/internal/config"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"
)

// mpesaClient talks to the Daraja STK push API. A token is fetched for every
// operation; nothing is cached between calls.
type mpesaClient struct {
	cfg  config.MpesaConfig
	http *http.Client
	now  func() time.Time
}

func NewMpesaClient(cfg config.MpesaConfig) Gateway {
	return &mpesaClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

func (c *mpesaClient) AcquireToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &GatewayAuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.AccessToken == "" {
		return "", &GatewayAuthError{StatusCode: resp.StatusCode, Message: "token missing from response"}
	}
	return out.AccessToken, nil
}

func (c *mpesaClient) InitiatePush(ctx context.Context, req *PushRequest) (*PushResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	if req.PartyA == "" || req.PhoneNumber == "" || req.InvoiceNumber == "" {
		return nil, fmt.Errorf("partyA, phoneNumber and invoiceNumber are required")
	}

	timestamp := c.now().Format(timestampLayout)
	desc := req.TransactionDesc
	if desc == "" {
		desc = "Payment of " + req.InvoiceNumber
	}
	payload := map[string]interface{}{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   c.cfg.TransactionType,
		"Amount":            req.Amount.Ceil().IntPart(),
		"PartyA":            req.PartyA,
		"PartyB":            c.cfg.PartyB,
		"PhoneNumber":       req.PhoneNumber,
		"CallBackURL":       callbackURL(c.cfg.CallbackURL, req.InvoiceNumber),
		"AccountReference":  req.InvoiceNumber,
		"TransactionDesc":   desc,
	}

	raw, err := c.post(ctx, "push", pushPath, payload)
	if err != nil {
		return nil, err
	}
	out := &PushResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return nil, &GatewayRequestError{Op: "push", StatusCode: http.StatusOK, Code: string(out.ResponseCode), Message: out.ResponseDescription}
	}
	if out.CheckoutRequestID == "" {
		return nil, &GatewayRequestError{Op: "push", StatusCode: http.StatusOK, Message: "CheckoutRequestID missing from response"}
	}
	return out, nil
}

func (c *mpesaClient) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	timestamp := c.now().Format(timestampLayout)
	payload := map[string]interface{}{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	raw, err := c.post(ctx, "query", queryPath, payload)
	if err != nil {
		return nil, err
	}
	out := &QueryResponse{Raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return out, nil
}

// post sends an authenticated JSON request and returns the raw 200 body.
func (c *mpesaClient) post(ctx context.Context, op, path string, payload interface{}) ([]byte, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway %s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway %s read: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, requestError(op, resp.StatusCode, body)
	}
	return body, nil
}

func (c *mpesaClient) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

// requestError lifts the Daraja error envelope into a GatewayRequestError.
func requestError(op string, status int, body []byte) error {
	var env struct {
		RequestID    string `json:"requestId"`
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	e := &GatewayRequestError{Op: op, StatusCode: status}
	if err := json.Unmarshal(body, &env); err == nil && env.ErrorMessage != "" {
		e.Code = env.ErrorCode
		e.Message = env.ErrorMessage
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// callbackURL fills the {invoice} placeholder, or appends the invoice as the
// last path segment when the template has none.
func callbackURL(template, invoice string) string {
	escaped := url.PathEscape(invoice)
	if strings.Contains(template, "{invoice}") {
		return strings.ReplaceAll(template, "{invoice}", escaped)
	}
	return strings.TrimRight(template, "/") + "/" + escaped
}
