package payment

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/fairwayhq/fairway-backend/internal/apperr"
	"github.com/fairwayhq/fairway-backend/internal/config"
)

// CheckoutRequest is the hosted-checkout payload a client asks us to seal.
type CheckoutRequest struct {
	MSISDN                string            `json:"msisdn" validate:"required"`
	AccountNumber         string            `json:"account_number" validate:"required"`
	CountryCode           string            `json:"country_code" validate:"required,len=3"`
	CurrencyCode          string            `json:"currency_code" validate:"required,len=3"`
	CustomerFirstName     string            `json:"customer_first_name" validate:"required"`
	CustomerLastName      string            `json:"customer_last_name" validate:"required"`
	DueDate               string            `json:"due_date,omitempty"`
	MerchantTransactionID string            `json:"merchant_transaction_id" validate:"required"`
	PaymentOptionCode     string            `json:"payment_option_code,omitempty"`
	CallbackURL           string            `json:"callback_url" validate:"required,url"`
	PendingRedirectURL    string            `json:"pending_redirect_url,omitempty" validate:"omitempty,url"`
	RequestAmount         decimal.Decimal   `json:"request_amount"`
	RequestDescription    string            `json:"request_description" validate:"required"`
	ServiceCode           string            `json:"service_code" validate:"required"`
	SuccessRedirectURL    string            `json:"success_redirect_url" validate:"required,url"`
	FailRedirectURL       string            `json:"fail_redirect_url" validate:"required,url"`
	LanguageCode          string            `json:"language_code" validate:"required,oneof=fr en ar pt"`
	ChargeBeneficiaries   []json.RawMessage `json:"charge_beneficiaries,omitempty"`
}

// EncryptedCheckout is handed to the client to open the hosted page.
type EncryptedCheckout struct {
	Params      string `json:"params"`
	AccessKey   string `json:"accessKey"`
	CountryCode string `json:"countryCode"`
}

// CheckoutEncryptor seals checkout payloads with AES-256-CBC.
type CheckoutEncryptor struct {
	key         []byte
	iv          []byte
	accessKey   string
	redirectURL string
}

func NewCheckoutEncryptor(cfg config.CheckoutConfig) *CheckoutEncryptor {
	return &CheckoutEncryptor{
		key:         hashPrefix(cfg.SecretKey, 32),
		iv:          hashPrefix(cfg.IVKey, aes.BlockSize),
		accessKey:   cfg.AccessKey,
		redirectURL: cfg.RedirectURL,
	}
}

// Encrypt forces every redirect to the app URL and drops the due date before
// sealing the payload.
func (e *CheckoutEncryptor) Encrypt(req CheckoutRequest) (*EncryptedCheckout, error) {
	if !req.RequestAmount.IsPositive() {
		return nil, apperr.InvalidErr("validation failed", map[string]string{"request_amount": "must be greater than 0"})
	}
	if e.redirectURL != "" {
		req.SuccessRedirectURL = e.redirectURL
		req.PendingRedirectURL = e.redirectURL
		req.FailRedirectURL = e.redirectURL
	}
	req.DueDate = ""

	// the checkout page expects request_amount as a JSON number
	type fields CheckoutRequest
	plain, err := json.Marshal(struct {
		fields
		RequestAmount json.Number `json:"request_amount"`
	}{fields(req), json.Number(req.RequestAmount.String())})
	if err != nil {
		return nil, err
	}
	sealed, err := e.seal(plain)
	if err != nil {
		return nil, err
	}
	return &EncryptedCheckout{Params: sealed, AccessKey: e.accessKey, CountryCode: req.CountryCode}, nil
}

// seal returns base64(base64(ciphertext)), the format the checkout page expects.
func (e *CheckoutEncryptor) seal(plain []byte) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, e.iv).CryptBlocks(out, padded)

	inner := base64.StdEncoding.EncodeToString(out)
	return base64.StdEncoding.EncodeToString([]byte(inner)), nil
}

// hashPrefix is the first n hex characters of sha256(s), used as raw key bytes.
func hashPrefix(s string, n int) []byte {
	sum := sha256.Sum256([]byte(s))
	return []byte(hex.EncodeToString(sum[:])[:n])
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
