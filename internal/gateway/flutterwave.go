package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL  = "https://api.flutterwave.com/v3"
	defaultTimeout  = 15 * time.Second
	paymentOptions  = "card,mobilemoney"
	sessionTitle    = "Deposit"
	sessionSubtitle = "Wallet deposit"
	maxBodyBytes    = 1 << 20
)

// Flutterwave talks to the Flutterwave v3 REST API with a bearer secret key.
type Flutterwave struct {
	SecretKey string
	BaseURL   string
	HTTP      *http.Client
	Logger    *slog.Logger
}

// NewFlutterwave builds a client with a bounded timeout so provider calls fail closed.
func NewFlutterwave(baseURL, secretKey string, timeout time.Duration, logger *slog.Logger) *Flutterwave {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Flutterwave{
		SecretKey: secretKey,
		BaseURL:   baseURL,
		HTTP:      &http.Client{Timeout: timeout},
		Logger:    logger,
	}
}

type createPaymentPayload struct {
	TxRef          string         `json:"tx_ref"`
	Amount         json.Number    `json:"amount"`
	Currency       string         `json:"currency"`
	RedirectURL    string         `json:"redirect_url"`
	PaymentOptions string         `json:"payment_options"`
	Customer       customer       `json:"customer"`
	Customizations customizations `json:"customizations"`
}

type customer struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phonenumber"`
}

type customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type transactionData struct {
	ID            FlexString          `json:"id"`
	TxRef         string              `json:"tx_ref"`
	Reference     string              `json:"reference"`
	FlwRef        string              `json:"flw_ref"`
	Status        string              `json:"status"`
	Currency      string              `json:"currency"`
	Amount        decimal.NullDecimal `json:"amount"`
	ChargedAmount decimal.NullDecimal `json:"charged_amount"`
}

// CreatePayment opens a hosted checkout session and returns its redirect link.
func (f *Flutterwave) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentSession, error) {
	if f.SecretKey == "" {
		return PaymentSession{}, ErrMissingSecretKey
	}

	payload := createPaymentPayload{
		TxRef:          req.TxRef,
		Amount:         json.Number(MajorUnits(req.AmountCents).StringFixed(2)),
		Currency:       req.Currency,
		RedirectURL:    req.RedirectURL,
		PaymentOptions: paymentOptions,
		Customer: customer{
			Email:       req.CustomerEmail,
			Name:        req.CustomerName,
			PhoneNumber: req.CustomerPhone,
		},
		Customizations: customizations{Title: sessionTitle, Description: sessionSubtitle},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return PaymentSession{}, err
	}

	status, env, err := f.do(ctx, http.MethodPost, "/payments", bytes.NewReader(body))
	if err != nil {
		return PaymentSession{}, &Error{
			Code:       CodePaymentInitFailed,
			HTTPStatus: http.StatusBadGateway,
			Message:    "payment gateway unreachable",
			Err:        err,
		}
	}

	if status < 200 || status > 299 || env.Status != "success" {
		httpStatus := status
		if httpStatus < 400 {
			httpStatus = http.StatusBadRequest
		}
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = "Failed to create payment"
		}
		return PaymentSession{}, &Error{Code: CodePaymentInitFailed, HTTPStatus: httpStatus, Message: msg}
	}

	var data struct {
		Link string `json:"link"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return PaymentSession{}, fmt.Errorf("%w: %v", ErrNoPaymentLink, err)
		}
	}
	if strings.TrimSpace(data.Link) == "" {
		return PaymentSession{}, ErrNoPaymentLink
	}

	return PaymentSession{Link: data.Link, Status: env.Status}, nil
}

// VerifyByReference fetches the provider's record for txRef.
func (f *Flutterwave) VerifyByReference(ctx context.Context, txRef string) (Transaction, error) {
	if f.SecretKey == "" {
		return Transaction{}, ErrMissingSecretKey
	}

	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	status, env, err := f.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if status < 200 || status > 299 || env.Status != "success" {
		return Transaction{}, fmt.Errorf("%w: status %d %s", ErrVerificationFailed, status, env.Message)
	}

	var data transactionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Transaction{}, fmt.Errorf("%w: decode data: %v", ErrVerificationFailed, err)
	}

	ref := strings.TrimSpace(data.TxRef)
	if ref == "" {
		ref = strings.TrimSpace(data.Reference)
	}
	return Transaction{
		ID:            string(data.ID),
		TxRef:         ref,
		FlwRef:        data.FlwRef,
		Status:        data.Status,
		Currency:      data.Currency,
		Amount:        data.Amount,
		ChargedAmount: data.ChargedAmount,
	}, nil
}

// do performs one API call. A non-JSON body is not an error here: the caller decides
// from the HTTP status and the zero envelope.
func (f *Flutterwave) do(ctx context.Context, method, path string, body io.Reader) (int, envelope, error) {
	base := f.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	client := f.HTTP
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return 0, envelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return 0, envelope{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return res.StatusCode, envelope{}, err
	}

	if f.Logger != nil {
		f.Logger.Debug("gateway call",
			slog.String("method", method),
			slog.String("path", strings.SplitN(path, "?", 2)[0]),
			slog.Int("status", res.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)
	return res.StatusCode, env, nil
}
