package funding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crashbet/payments/internal/deposit"
	"github.com/crashbet/payments/internal/gateway"
	"github.com/crashbet/payments/internal/identity"
	"github.com/crashbet/payments/internal/ledger"
	"github.com/crashbet/payments/internal/logging"
	"github.com/crashbet/payments/internal/notification"
)

type fakeGateway struct {
	mu        sync.Mutex
	link      string
	createErr error
	tx        gateway.Transaction
	verifyErr error
	created   []gateway.PaymentRequest
	verified  []string
}

func (g *fakeGateway) CreatePayment(_ context.Context, req gateway.PaymentRequest) (gateway.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return gateway.PaymentSession{}, g.createErr
	}
	return gateway.PaymentSession{Link: g.link, Status: "success"}, nil
}

func (g *fakeGateway) VerifyByReference(_ context.Context, txRef string) (gateway.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verified = append(g.verified, txRef)
	if g.verifyErr != nil {
		return gateway.Transaction{}, g.verifyErr
	}
	return g.tx, nil
}

func (g *fakeGateway) createCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

func (g *fakeGateway) verifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.verified)
}

// onceApplier accepts the first application per deposit and rejects the rest, which
// is the contract the ledger procedure provides.
type onceApplier struct {
	mu    sync.Mutex
	calls []ledger.Callback
	done  map[string]bool
	err   error
}

func (a *onceApplier) ApplyDepositCallback(_ context.Context, cb ledger.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, cb)
	if a.err != nil {
		return a.err
	}
	if a.done == nil {
		a.done = make(map[string]bool)
	}
	if a.done[cb.DepositID] {
		return ledger.ErrDuplicateTransaction
	}
	a.done[cb.DepositID] = true
	return nil
}

func (a *onceApplier) snapshot() []ledger.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ledger.Callback(nil), a.calls...)
}

// recordingApplier records callbacks before handing them to another Applier.
type recordingApplier struct {
	mu    sync.Mutex
	calls []ledger.Callback
	next  ledger.Applier
}

func (a *recordingApplier) ApplyDepositCallback(ctx context.Context, cb ledger.Callback) error {
	a.mu.Lock()
	a.calls = append(a.calls, cb)
	a.mu.Unlock()
	return a.next.ApplyDepositCallback(ctx, cb)
}

func (a *recordingApplier) snapshot() []ledger.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ledger.Callback(nil), a.calls...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return nil
}

type failingRepository struct {
	deposit.Repository
}

func (failingRepository) Get(context.Context, string) (deposit.Deposit, error) {
	return deposit.Deposit{}, errors.New("connection reset")
}

func (failingRepository) FindByExternalRef(context.Context, string) (deposit.Deposit, error) {
	return deposit.Deposit{}, errors.New("connection reset")
}

type failingDirectory struct{}

func (failingDirectory) FindByID(context.Context, string) (identity.User, error) {
	return identity.User{}, errors.New("identity provider unavailable")
}

type unlinkableRepository struct {
	*deposit.MemoryRepository
}

func (unlinkableRepository) LinkProvider(context.Context, string, string, string, time.Time) error {
	return errors.New("permission denied")
}

const (
	testBaseURL     = "https://game.example"
	testSecretKey   = "FLWSECK_TEST"
	testWebhookKey  = "whsec"
	testCurrency    = "KES"
	testPaymentLink = "https://checkout.example/pay/abc"
)

func newTestInitiator(repo deposit.Repository, users identity.Directory, gw gateway.Gateway) *Initiator {
	return NewInitiator(InitiatorConfig{
		BaseURL:          testBaseURL,
		GatewaySecretKey: testSecretKey,
		Currency:         testCurrency,
	}, repo, users, gw, nil, logging.Discard())
}

func newTestReconciler(repo deposit.Repository, gw gateway.Gateway, applier ledger.Applier, notifier notification.Notifier) *Reconciler {
	return NewReconciler(ReconcilerConfig{
		WebhookSecret:    testWebhookKey,
		GatewaySecretKey: testSecretKey,
		Currency:         testCurrency,
	}, repo, gw, applier, notifier, nil, logging.Discard())
}
