package funding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crashbet/payments/internal/deposit"
	"github.com/crashbet/payments/internal/gateway"
	"github.com/crashbet/payments/internal/ledger"
	"github.com/crashbet/payments/internal/metrics"
	"github.com/crashbet/payments/internal/notification"
	"github.com/crashbet/payments/internal/signature"
)

// Outcome is the terminal classification of one webhook delivery.
type Outcome string

const (
	OutcomeConfigMissing       Outcome = "config_missing"
	OutcomeSignatureInvalid    Outcome = "signature_invalid"
	OutcomePayloadInvalid      Outcome = "payload_invalid"
	OutcomeReferenceMissing    Outcome = "reference_missing"
	OutcomeDepositUnknown      Outcome = "deposit_unknown"
	OutcomeLookupFailed        Outcome = "lookup_failed"
	OutcomeGatewayUnconfigured Outcome = "gateway_unconfigured"
	OutcomeAppliedSuccess      Outcome = "applied_success"
	OutcomeAppliedFailed       Outcome = "applied_failed"
	OutcomeDuplicate           Outcome = "duplicate"
	OutcomeApplyError          Outcome = "apply_error"
)

var amountTolerance = decimal.New(1, -2)

// ReconcilerConfig holds the secrets and currency the webhook flow checks against.
type ReconcilerConfig struct {
	WebhookSecret    string
	GatewaySecretKey string
	Currency         string
}

// Reconciler turns authenticated gateway webhooks into exactly one ledger
// application per deposit.
type Reconciler struct {
	cfg      ReconcilerConfig
	deposits deposit.Repository
	gateway  gateway.Gateway
	ledger   ledger.Applier
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler constructs the webhook reconciliation service.
func NewReconciler(cfg ReconcilerConfig, deposits deposit.Repository, gw gateway.Gateway, applier ledger.Applier, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		cfg:      cfg,
		deposits: deposits,
		gateway:  gw,
		ledger:   applier,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile processes one webhook delivery. body must be the raw request bytes. The
// webhook only says which reference to look at; the decision is made from the
// gateway's own transaction record.
func (r *Reconciler) Reconcile(ctx context.Context, body []byte, headers signature.Headers) Outcome {
	outcome, attrs := r.reconcile(ctx, body, headers)
	r.metrics.Webhook(string(outcome))

	attrs = append([]any{slog.String("outcome", string(outcome))}, attrs...)
	switch outcome {
	case OutcomeAppliedSuccess, OutcomeAppliedFailed, OutcomeDuplicate:
		r.logger.Info("webhook reconciled", attrs...)
	case OutcomeConfigMissing, OutcomeLookupFailed, OutcomeGatewayUnconfigured, OutcomeApplyError:
		r.logger.Error("webhook not reconciled", attrs...)
	default:
		r.logger.Warn("webhook ignored", attrs...)
	}
	return outcome
}

func (r *Reconciler) reconcile(ctx context.Context, body []byte, headers signature.Headers) (Outcome, []any) {
	if r.cfg.WebhookSecret == "" {
		return OutcomeConfigMissing, nil
	}
	if !signature.Verify(body, headers, r.cfg.WebhookSecret) {
		return OutcomeSignatureInvalid, nil
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return OutcomePayloadInvalid, []any{slog.Any("error", err)}
	}

	txRef := event.txRef()
	if txRef == "" {
		return OutcomeReferenceMissing, []any{slog.String("event", event.Event)}
	}
	attrs := []any{slog.String("tx_ref", txRef)}

	d, err := r.deposits.FindByExternalRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, deposit.ErrNotFound) {
			return OutcomeDepositUnknown, attrs
		}
		return OutcomeLookupFailed, append(attrs, slog.Any("error", err))
	}
	attrs = append(attrs, slog.String("deposit_id", d.ID))

	if r.cfg.GatewaySecretKey == "" {
		return OutcomeGatewayUnconfigured, attrs
	}

	started := r.now()
	tx, verifyErr := r.gateway.VerifyByReference(ctx, txRef)
	r.metrics.ObserveGateway("verify_by_reference", started)

	// An unverifiable transaction settles the deposit as failed.
	status, reason := ledger.CallbackFailed, "verification_failed"
	if verifyErr != nil {
		attrs = append(attrs, slog.Any("error", verifyErr))
	} else {
		status, reason = r.decide(d, txRef, tx)
	}
	attrs = append(attrs, slog.String("status", status))
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}

	webhookID := event.providerRef()
	externalRef := webhookID
	if status == ledger.CallbackSuccess {
		externalRef = firstNonEmpty(tx.ID, tx.FlwRef, externalRef)
	}

	err = r.ledger.ApplyDepositCallback(ctx, ledger.Callback{
		DepositID:         d.ID,
		Status:            status,
		CheckoutRequestID: txRef,
		MerchantRequestID: webhookID,
		ExternalRef:       externalRef,
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return OutcomeDuplicate, attrs
	case err != nil:
		return OutcomeApplyError, append(attrs, slog.Any("error", err))
	case status == ledger.CallbackFailed:
		return OutcomeAppliedFailed, attrs
	}

	r.notifyCredited(ctx, d)
	return OutcomeAppliedSuccess, attrs
}

// decide classifies the verified transaction against the stored deposit. The returned
// reason names the first check that failed.
func (r *Reconciler) decide(d deposit.Deposit, txRef string, tx gateway.Transaction) (string, string) {
	if tx.TxRef != txRef {
		return ledger.CallbackFailed, "reference_mismatch"
	}
	switch strings.ToLower(strings.TrimSpace(tx.Status)) {
	case "successful", "succeeded":
	default:
		return ledger.CallbackFailed, "status_" + strings.ToLower(tx.Status)
	}
	if !strings.EqualFold(strings.TrimSpace(tx.Currency), r.cfg.Currency) {
		return ledger.CallbackFailed, "currency_mismatch"
	}
	diff := tx.Charged().Sub(gateway.MajorUnits(d.AmountCents)).Abs()
	if !diff.LessThan(amountTolerance) {
		return ledger.CallbackFailed, "amount_mismatch"
	}
	return ledger.CallbackSuccess, ""
}

func (r *Reconciler) notifyCredited(ctx context.Context, d deposit.Deposit) {
	if r.notifier == nil || d.UserID == "" {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindDepositCredited,
		Destination: d.UserID,
		Body:        fmt.Sprintf("Deposit of %s %s credited", gateway.MajorUnits(d.AmountCents).StringFixed(2), r.cfg.Currency),
		DepositID:   d.ID,
		AmountCents: d.AmountCents,
	}
	if err := r.notifier.Send(ctx, msg); err != nil {
		r.logger.Warn("deposit notification failed",
			slog.String("deposit_id", d.ID),
			slog.Any("error", err),
		)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
