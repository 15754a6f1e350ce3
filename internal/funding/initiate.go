package funding

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crashbet/payments/internal/deposit"
	"github.com/crashbet/payments/internal/gateway"
	"github.com/crashbet/payments/internal/identity"
	"github.com/crashbet/payments/internal/metrics"
)

// maxAmountCents keeps amounts inside int64 minor units with room for ledger sums.
const maxAmountCents = 1 << 53

const defaultCustomerName = "Customer"

// InitiatorConfig holds the settings the initiation flow needs at request time.
type InitiatorConfig struct {
	BaseURL          string
	GatewaySecretKey string
	Currency         string
}

// InitiateInput is a validated initiation request plus the request origin headers.
type InitiateInput struct {
	DepositID   string
	AmountCents int64
	Email       string
	Phone       string
	Origin      string
	Referer     string
	CallerID    string
}

// InitiateResult describes an opened and linked payment session.
type InitiateResult struct {
	DepositID   string
	PaymentLink string
	TxRef       string
}

// Initiator opens hosted checkout sessions for pending deposits.
type Initiator struct {
	cfg      InitiatorConfig
	deposits deposit.Repository
	users    identity.Directory
	gateway  gateway.Gateway
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewInitiator constructs the initiation service.
func NewInitiator(cfg InitiatorConfig, deposits deposit.Repository, users identity.Directory, gw gateway.Gateway, m *metrics.Metrics, logger *slog.Logger) *Initiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{
		cfg:      cfg,
		deposits: deposits,
		users:    users,
		gateway:  gw,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Initiate loads the deposit, resolves the payer, opens a gateway session and links it
// to the deposit. Nothing is persisted unless the gateway returned a payment link.
func (s *Initiator) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	if strings.TrimSpace(s.cfg.BaseURL) == "" || strings.TrimSpace(s.cfg.GatewaySecretKey) == "" {
		return InitiateResult{}, newError(http.StatusInternalServerError, CodeConfigMissing, "payment gateway is not configured", nil)
	}

	d, err := s.loadDeposit(ctx, in.DepositID)
	if err != nil {
		return InitiateResult{}, err
	}

	email, err := s.resolveEmail(ctx, in, d)
	if err != nil {
		return InitiateResult{}, err
	}

	txRef := deposit.ReferenceFor(in.DepositID)
	started := s.now()
	session, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		TxRef:         txRef,
		AmountCents:   in.AmountCents,
		Currency:      s.cfg.Currency,
		CustomerEmail: email,
		CustomerName:  customerName(email),
		CustomerPhone: in.Phone,
		RedirectURL:   s.redirectURL(in),
	})
	s.metrics.ObserveGateway("create_payment", started)
	if err != nil {
		return InitiateResult{}, s.gatewayError(in.DepositID, err)
	}

	if err := s.deposits.LinkProvider(ctx, in.DepositID, gateway.ProviderName, txRef, s.now().UTC()); err != nil {
		s.logger.Error("link deposit to payment session",
			slog.String("deposit_id", in.DepositID),
			slog.String("tx_ref", txRef),
			slog.Any("error", err),
		)
		return InitiateResult{}, newError(http.StatusInternalServerError, CodeDBUpdateFailed, "failed to link deposit to payment session", err)
	}

	s.logger.Info("payment session opened",
		slog.String("deposit_id", in.DepositID),
		slog.String("tx_ref", txRef),
		slog.Int64("amount_cents", in.AmountCents),
		slog.String("caller_id", in.CallerID),
	)
	return InitiateResult{DepositID: in.DepositID, PaymentLink: session.Link, TxRef: txRef}, nil
}

func (s *Initiator) loadDeposit(ctx context.Context, id string) (deposit.Deposit, error) {
	d, err := s.deposits.Get(ctx, id)
	if err != nil {
		if errors.Is(err, deposit.ErrNotFound) {
			return deposit.Deposit{}, newError(http.StatusNotFound, CodeDepositNotFound, "deposit not found", err)
		}
		return deposit.Deposit{}, newError(http.StatusInternalServerError, CodeDBLookupFailed, "failed to load deposit", err)
	}
	return d, nil
}

func (s *Initiator) resolveEmail(ctx context.Context, in InitiateInput, d deposit.Deposit) (string, error) {
	if in.Email != "" {
		return in.Email, nil
	}
	if d.UserID == "" {
		return "", newError(http.StatusNotFound, CodeDepositNotFound, "deposit has no owner", nil)
	}

	user, err := s.users.FindByID(ctx, d.UserID)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return "", newError(http.StatusBadGateway, CodeIdentityLookupFailed, "failed to resolve payer email", err)
	}
	if email := strings.TrimSpace(user.Email); email != "" {
		return email, nil
	}
	return "", badRequest(CodeEmailRequired, "email required for payment")
}

func (s *Initiator) redirectURL(in InitiateInput) string {
	base := strings.TrimSpace(in.Origin)
	if base == "" {
		base = strings.TrimSpace(in.Referer)
	}
	if base == "" {
		base = s.cfg.BaseURL
	}
	return strings.TrimRight(base, "/") + "/"
}

func (s *Initiator) gatewayError(depositID string, err error) error {
	s.logger.Warn("payment session refused",
		slog.String("deposit_id", depositID),
		slog.Any("error", err),
	)

	var gwErr *gateway.Error
	switch {
	case errors.As(err, &gwErr):
		return newError(gwErr.HTTPStatus, CodePaymentInitFailed, gwErr.Message, err)
	case errors.Is(err, gateway.ErrNoPaymentLink):
		return newError(http.StatusBadGateway, CodeNoPaymentLink, "payment gateway returned no link", err)
	case errors.Is(err, gateway.ErrMissingSecretKey):
		return newError(http.StatusInternalServerError, CodeConfigMissing, "payment gateway is not configured", err)
	default:
		return newError(http.StatusBadGateway, CodePaymentInitFailed, "failed to create payment", err)
	}
}

func customerName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local = strings.TrimSpace(local); local != "" {
		return local
	}
	return defaultCustomerName
}
