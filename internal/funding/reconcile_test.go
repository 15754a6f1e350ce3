package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/crashbet/payments/internal/deposit"
	"github.com/crashbet/payments/internal/gateway"
	"github.com/crashbet/payments/internal/ledger"
	"github.com/crashbet/payments/internal/logging"
	"github.com/crashbet/payments/internal/signature"
)

func linkedDeposits() *deposit.MemoryRepository {
	return deposit.NewMemoryRepository(deposit.Deposit{
		ID:          "d1",
		UserID:      "u1",
		AmountCents: 500,
		Provider:    gateway.ProviderName,
		ExternalRef: "dep_d1",
	})
}

func verifiedTx(amount string) gateway.Transaction {
	return gateway.Transaction{
		ID:            "4521733",
		TxRef:         "dep_d1",
		FlwRef:        "FLW-MOCK-1",
		Status:        "successful",
		Currency:      "KES",
		ChargedAmount: decimal.NewNullDecimal(decimal.RequireFromString(amount)),
	}
}

func webhookBody(txRef string) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.completed","data":{"id":4521733,"tx_ref":%q,"flw_ref":"FLW-MOCK-1","status":"successful"}}`, txRef))
}

func signed(body []byte) signature.Headers {
	return signature.Headers{Signature: signature.Sign(body, testWebhookKey)}
}

func TestReconcileAppliesSuccess(t *testing.T) {
	applier := &onceApplier{}
	notifier := &recordingNotifier{}
	rec := newTestReconciler(linkedDeposits(), &fakeGateway{tx: verifiedTx("5.00")}, applier, notifier)

	body := webhookBody("dep_d1")
	if got := rec.Reconcile(context.Background(), body, signed(body)); got != OutcomeAppliedSuccess {
		t.Fatalf("expected applied_success, got %s", got)
	}

	calls := applier.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one ledger call, got %d", len(calls))
	}
	cb := calls[0]
	if cb.DepositID != "d1" || cb.Status != ledger.CallbackSuccess || cb.ExternalRef != "4521733" {
		t.Fatalf("unexpected callback %+v", cb)
	}
	if cb.CheckoutRequestID != "dep_d1" || cb.MerchantRequestID != "4521733" {
		t.Fatalf("unexpected request ids %+v", cb)
	}
	if len(notifier.messages) != 1 || notifier.messages[0].Destination != "u1" {
		t.Fatalf("expected one notification to u1, got %+v", notifier.messages)
	}
}

func TestReconcileDecision(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*gateway.Transaction)
		want   string
	}{
		{"exact amount", func(*gateway.Transaction) {}, ledger.CallbackSuccess},
		{"lowercase currency", func(tx *gateway.Transaction) { tx.Currency = "kes" }, ledger.CallbackSuccess},
		{"succeeded status", func(tx *gateway.Transaction) { tx.Status = "SUCCEEDED" }, ledger.CallbackSuccess},
		{"sub-cent rounding", func(tx *gateway.Transaction) {
			tx.ChargedAmount = decimal.NewNullDecimal(decimal.RequireFromString("5.009"))
		}, ledger.CallbackSuccess},
		{"amount off by two cents", func(tx *gateway.Transaction) {
			tx.ChargedAmount = decimal.NewNullDecimal(decimal.RequireFromString("5.02"))
		}, ledger.CallbackFailed},
		{"amount off by one cent", func(tx *gateway.Transaction) {
			tx.ChargedAmount = decimal.NewNullDecimal(decimal.RequireFromString("4.99"))
		}, ledger.CallbackFailed},
		{"charged falls back to amount", func(tx *gateway.Transaction) {
			tx.ChargedAmount = decimal.NullDecimal{}
			tx.Amount = decimal.NewNullDecimal(decimal.RequireFromString("5"))
		}, ledger.CallbackSuccess},
		{"other currency", func(tx *gateway.Transaction) { tx.Currency = "USD" }, ledger.CallbackFailed},
		{"pending status", func(tx *gateway.Transaction) { tx.Status = "pending" }, ledger.CallbackFailed},
		{"reference mismatch", func(tx *gateway.Transaction) { tx.TxRef = "dep_other" }, ledger.CallbackFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := verifiedTx("5.00")
			tc.mutate(&tx)
			applier := &onceApplier{}
			rec := newTestReconciler(linkedDeposits(), &fakeGateway{tx: tx}, applier, nil)

			body := webhookBody("dep_d1")
			rec.Reconcile(context.Background(), body, signed(body))

			calls := applier.snapshot()
			if len(calls) != 1 || calls[0].Status != tc.want {
				t.Fatalf("expected one %s callback, got %+v", tc.want, calls)
			}
		})
	}
}

func TestReconcileFailedUsesWebhookID(t *testing.T) {
	tx := verifiedTx("5.00")
	tx.Currency = "USD"
	applier := &onceApplier{}
	rec := newTestReconciler(linkedDeposits(), &fakeGateway{tx: tx}, applier, nil)

	body := []byte(`{"data":{"flw_ref":"FLW-HOOK","tx_ref":"dep_d1"}}`)
	if got := rec.Reconcile(context.Background(), body, signed(body)); got != OutcomeAppliedFailed {
		t.Fatalf("expected applied_failed, got %s", got)
	}
	if cb := applier.snapshot()[0]; cb.ExternalRef != "FLW-HOOK" {
		t.Fatalf("expected webhook reference on failure, got %q", cb.ExternalRef)
	}
}

func TestReconcileStopsBeforeLedger(t *testing.T) {
	body := webhookBody("dep_d1")
	cases := []struct {
		name    string
		cfg     ReconcilerConfig
		repo    deposit.Repository
		gw      *fakeGateway
		body    []byte
		headers signature.Headers
		want    Outcome
	}{
		{"no webhook secret", ReconcilerConfig{GatewaySecretKey: testSecretKey, Currency: testCurrency}, linkedDeposits(), &fakeGateway{}, body, signed(body), OutcomeConfigMissing},
		{"bad signature", ReconcilerConfig{WebhookSecret: testWebhookKey, GatewaySecretKey: testSecretKey}, linkedDeposits(), &fakeGateway{}, body, signature.Headers{Signature: signature.Sign(body, "other")}, OutcomeSignatureInvalid},
		{"no signature", ReconcilerConfig{WebhookSecret: testWebhookKey, GatewaySecretKey: testSecretKey}, linkedDeposits(), &fakeGateway{}, body, signature.Headers{}, OutcomeSignatureInvalid},
		{"invalid json", ReconcilerConfig{WebhookSecret: testWebhookKey, GatewaySecretKey: testSecretKey}, linkedDeposits(), &fakeGateway{}, []byte(`{`), signed([]byte(`{`)), OutcomePayloadInvalid},
		{"no reference", ReconcilerConfig{WebhookSecret: testWebhookKey, GatewaySecretKey: testSecretKey}, linkedDeposits(), &fakeGateway{}, []byte(`{"data":{}}`), signed([]byte(`{"data":{}}`)), OutcomeReferenceMissing},
		{"unknown deposit", ReconcilerConfig{WebhookSecret: testWebhookKey, GatewaySecretKey: testSecretKey}, linkedDeposits(), &fakeGateway{}, webhookBody("dep_zzz"), signed(webhookBody("dep_zzz")), OutcomeDepositUnknown},
		{"store failure", ReconcilerConfig{WebhookSecret: testWebhookKey, GatewaySecretKey: testSecretKey}, failingRepository{}, &fakeGateway{}, body, signed(body), OutcomeLookupFailed},
		{"no gateway key", ReconcilerConfig{WebhookSecret: testWebhookKey}, linkedDeposits(), &fakeGateway{}, body, signed(body), OutcomeGatewayUnconfigured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			applier := &onceApplier{}
			rec := NewReconciler(tc.cfg, tc.repo, tc.gw, applier, nil, nil, logging.Discard())
			if got := rec.Reconcile(context.Background(), tc.body, tc.headers); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if n := len(applier.snapshot()); n != 0 {
				t.Fatalf("ledger must not be called, got %d calls", n)
			}
		})
	}
}

func TestReconcileVerificationErrorAppliesFailed(t *testing.T) {
	for _, verifyErr := range []error{
		gateway.ErrVerificationFailed,
		fmt.Errorf("%w: status 404 No transaction was found", gateway.ErrVerificationFailed),
	} {
		repo := linkedDeposits()
		mem := ledger.NewInMemory(repo)
		applier := &recordingApplier{next: mem}
		rec := newTestReconciler(repo, &fakeGateway{verifyErr: verifyErr}, applier, nil)

		body := webhookBody("dep_d1")
		if got := rec.Reconcile(context.Background(), body, signed(body)); got != OutcomeAppliedFailed {
			t.Fatalf("expected applied_failed, got %s", got)
		}

		calls := applier.snapshot()
		if len(calls) != 1 {
			t.Fatalf("expected exactly one ledger call, got %d", len(calls))
		}
		if cb := calls[0]; cb.Status != ledger.CallbackFailed || cb.ExternalRef != "4521733" || cb.CheckoutRequestID != "dep_d1" {
			t.Fatalf("unexpected callback %+v", cb)
		}

		d, _ := repo.Get(context.Background(), "d1")
		if d.Status != deposit.StatusFailed {
			t.Fatalf("deposit must leave pending, got %s", d.Status)
		}
		if bal := mem.Balance(context.Background(), "u1"); bal != 0 {
			t.Fatalf("failed verification must not credit, got %d", bal)
		}
	}
}

func TestReconcileStaticHashHeader(t *testing.T) {
	applier := &onceApplier{}
	rec := newTestReconciler(linkedDeposits(), &fakeGateway{tx: verifiedTx("5")}, applier, nil)

	body := webhookBody("dep_d1")
	if got := rec.Reconcile(context.Background(), body, signature.Headers{StaticHash: testWebhookKey}); got != OutcomeAppliedSuccess {
		t.Fatalf("expected applied_success, got %s", got)
	}
}

func TestReconcileReplayIsDuplicate(t *testing.T) {
	applier := &onceApplier{}
	rec := newTestReconciler(linkedDeposits(), &fakeGateway{tx: verifiedTx("5.00")}, applier, nil)
	body := webhookBody("dep_d1")

	if got := rec.Reconcile(context.Background(), body, signed(body)); got != OutcomeAppliedSuccess {
		t.Fatalf("first delivery: %s", got)
	}
	if got := rec.Reconcile(context.Background(), body, signed(body)); got != OutcomeDuplicate {
		t.Fatalf("second delivery: expected duplicate, got %s", got)
	}
	if n := len(applier.snapshot()); n != 2 {
		t.Fatalf("expected each delivery to reach the ledger once, got %d calls", n)
	}
}

func TestReconcileApplyError(t *testing.T) {
	applier := &onceApplier{err: errors.New("rpc timeout")}
	rec := newTestReconciler(linkedDeposits(), &fakeGateway{tx: verifiedTx("5.00")}, applier, nil)
	body := webhookBody("dep_d1")
	if got := rec.Reconcile(context.Background(), body, signed(body)); got != OutcomeApplyError {
		t.Fatalf("expected apply_error, got %s", got)
	}
}

func TestReconcileConcurrentDeliveriesCreditOnce(t *testing.T) {
	repo := linkedDeposits()
	mem := ledger.NewInMemory(repo)
	rec := newTestReconciler(repo, &fakeGateway{tx: verifiedTx("5.00")}, mem, nil)
	body := webhookBody("dep_d1")

	const deliveries = 16
	outcomes := make(chan Outcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- rec.Reconcile(context.Background(), body, signed(body))
		}()
	}
	wg.Wait()
	close(outcomes)

	applied := 0
	for o := range outcomes {
		switch o {
		case OutcomeAppliedSuccess:
			applied++
		case OutcomeDuplicate:
		default:
			t.Fatalf("unexpected outcome %s", o)
		}
	}
	if applied != 1 {
		t.Fatalf("expected exactly one application, got %d", applied)
	}
	if bal := mem.Balance(context.Background(), "u1"); bal != 500 {
		t.Fatalf("expected balance 500, got %d", bal)
	}
	d, _ := repo.Get(context.Background(), "d1")
	if d.Status != deposit.StatusSuccess {
		t.Fatalf("expected deposit success, got %s", d.Status)
	}
}
