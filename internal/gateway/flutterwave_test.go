package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Flutterwave {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFlutterwave(srv.URL, "sk_test", 2*time.Second, nil)
}

func TestCreatePaymentSuccess(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("missing bearer key, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.example/pay/abc"}}`))
	})

	session, err := client.CreatePayment(context.Background(), PaymentRequest{
		TxRef:         "dep_d1",
		AmountCents:   10_050,
		Currency:      "KES",
		CustomerEmail: "player@example.com",
		CustomerName:  "player",
		CustomerPhone: "254700000000",
		RedirectURL:   "https://game.example/",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if session.Link != "https://checkout.example/pay/abc" {
		t.Fatalf("unexpected link %q", session.Link)
	}

	if got["tx_ref"] != "dep_d1" || got["currency"] != "KES" || got["payment_options"] != "card,mobilemoney" {
		t.Fatalf("unexpected payload %v", got)
	}
	if amount, _ := got["amount"].(float64); amount != 100.5 {
		t.Fatalf("expected amount 100.5 in major units, got %v", got["amount"])
	}
	cust, _ := got["customer"].(map[string]any)
	if cust["email"] != "player@example.com" || cust["phonenumber"] != "254700000000" {
		t.Fatalf("unexpected customer %v", cust)
	}
}

func TestCreatePaymentProviderRefusal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"Invalid authorization key"}`))
	})

	_, err := client.CreatePayment(context.Background(), PaymentRequest{TxRef: "dep_x", AmountCents: 100})
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if gwErr.Code != CodePaymentInitFailed || gwErr.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected error %+v", gwErr)
	}
	if gwErr.Message != "Invalid authorization key" {
		t.Fatalf("expected provider message, got %q", gwErr.Message)
	}
}

func TestCreatePaymentNonSuccessOn200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"currency not supported"}`))
	})

	_, err := client.CreatePayment(context.Background(), PaymentRequest{TxRef: "dep_x", AmountCents: 100})
	var gwErr *Error
	if !errors.As(err, &gwErr) || gwErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 PAYMENT_INIT_FAILED, got %v", err)
	}
}

func TestCreatePaymentMissingLink(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{}}`))
	})

	_, err := client.CreatePayment(context.Background(), PaymentRequest{TxRef: "dep_x", AmountCents: 100})
	if !errors.Is(err, ErrNoPaymentLink) {
		t.Fatalf("expected ErrNoPaymentLink, got %v", err)
	}
}

func TestCreatePaymentWithoutKey(t *testing.T) {
	client := &Flutterwave{BaseURL: "http://127.0.0.1:1"}
	if _, err := client.CreatePayment(context.Background(), PaymentRequest{}); !errors.Is(err, ErrMissingSecretKey) {
		t.Fatalf("expected ErrMissingSecretKey, got %v", err)
	}
}

func TestVerifyByReference(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/verify_by_reference" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("tx_ref") != "dep_d1" {
			t.Errorf("unexpected tx_ref %q", r.URL.Query().Get("tx_ref"))
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":4521733,"tx_ref":"dep_d1","flw_ref":"FLW-MOCK-1","status":"successful","currency":"KES","amount":5,"charged_amount":5.00}}`))
	})

	tx, err := client.VerifyByReference(context.Background(), "dep_d1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tx.ID != "4521733" || tx.TxRef != "dep_d1" || tx.FlwRef != "FLW-MOCK-1" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !tx.Charged().Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected charged amount %s", tx.Charged())
	}
}

func TestVerifyByReferenceFallsBackToAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":"77","reference":"dep_d2","status":"successful","currency":"KES","amount":"12.34"}}`))
	})

	tx, err := client.VerifyByReference(context.Background(), "dep_d2")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tx.TxRef != "dep_d2" {
		t.Fatalf("expected reference fallback, got %q", tx.TxRef)
	}
	if tx.ChargedAmount.Valid {
		t.Fatal("charged_amount should be absent")
	}
	if !tx.Charged().Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("unexpected charged amount %s", tx.Charged())
	}
}

func TestVerifyByReferenceFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"error","message":"No transaction was found"}`))
	})

	if _, err := client.VerifyByReference(context.Background(), "dep_missing"); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":123,"b":" x1 ","c":null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != "123" || v.B != "x1" || v.C != "" {
		t.Fatalf("unexpected values %+v", v)
	}
}

func TestMajorUnits(t *testing.T) {
	if got := MajorUnits(500).StringFixed(2); got != "5.00" {
		t.Fatalf("expected 5.00, got %s", got)
	}
	if got := MajorUnits(1).String(); got != "0.01" {
		t.Fatalf("expected 0.01, got %s", got)
	}
}
