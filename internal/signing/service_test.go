package signing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

const (
	testExchange   = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	testUSDC       = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	testTeamWallet = "0x00000000000000000000000000000000000000aa"
	testWallet     = "0x1111111111111111111111111111111111111111"
)

type fakeLedger struct {
	mu         sync.Mutex
	activities map[int64]*domain.TargetActivity
	getCalls   int
	getErr     error
	reserveErr error
}

func (f *fakeLedger) GetActivity(_ context.Context, id int64) (domain.TargetActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return domain.TargetActivity{}, f.getErr
	}
	a, ok := f.activities[id]
	if !ok {
		return domain.TargetActivity{}, domain.ErrActivityNotFound
	}
	return *a, nil
}

func (f *fakeLedger) ReserveFlag(_ context.Context, id int64, kind domain.FlagKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return f.reserveErr
	}
	a, ok := f.activities[id]
	if !ok {
		return domain.ErrActivityNotFound
	}
	switch kind {
	case domain.FlagOrder:
		if a.OrderSigned {
			return domain.ErrAlreadySigned
		}
		a.OrderSigned = true
	case domain.FlagCommission:
		if a.CommissionSigned {
			return domain.ErrAlreadySigned
		}
		a.CommissionSigned = true
	}
	return nil
}

type fakeSigner struct {
	mu      sync.Mutex
	calls   int
	err     error
	lastRef string
}

func (f *fakeSigner) SignTypedData(_ context.Context, walletRef string, _ domain.TypedData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastRef = walletRef
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("0xsig%04d", f.calls), nil
}

func (f *fakeSigner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAudit struct {
	mu        sync.Mutex
	entries   []domain.AuditEntry
	appendErr error
}

func (f *fakeAudit) Append(_ context.Context, e domain.AuditEntry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func (f *fakeAudit) GetByID(context.Context, int64) (domain.AuditEntry, error) {
	return domain.AuditEntry{}, domain.ErrNotFound
}

func (f *fakeAudit) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAudit) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (f *fakeAudit) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeAudit) last(t *testing.T) domain.AuditEntry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.entries)
	return f.entries[len(f.entries)-1]
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWhitelist() *Whitelist {
	return NewWhitelist(WhitelistConfig{
		ChainID:            137,
		VerifyingContracts: []string{testExchange},
		TokenAddresses:     []string{testUSDC},
		SpenderAddresses:   []string{testExchange},
		TeamWallets:        []string{testTeamWallet},
	})
}

type serviceFixture struct {
	svc    *Service
	ledger *fakeLedger
	signer *fakeSigner
	audit  *fakeAudit
}

func newFixture(opts ...func(*serviceFixture)) *serviceFixture {
	f := &serviceFixture{
		ledger: &fakeLedger{activities: map[int64]*domain.TargetActivity{
			42: {ID: 42, UserID: 7, TokenID: "123456", Side: "BUY", NotionalUSDC: 100000},
		}},
		signer: &fakeSigner{},
		audit:  &fakeAudit{},
	}
	for _, opt := range opts {
		opt(f)
	}
	logger := testLogger()
	security := NewSecurityManager(nil, nil, Limits{}, logger)
	f.svc = NewService(f.ledger, f.audit, f.signer, security, nil, testWhitelist(),
		CommissionPolicy{ExpectedPct: 1.0, TolerancePct: 0.1}, logger)
	return f
}

func validOrderRequest() domain.OrderRequest {
	return domain.OrderRequest{
		RequestBase: domain.RequestBase{
			UserID:        7,
			WalletRef:     "wallet-ref-1",
			WalletAddress: testWallet,
			ChainID:       137,
		},
		TokenID:           "123456",
		Side:              domain.SideBuy,
		MakerAmount:       big.NewInt(100_000_000),
		TakerAmount:       big.NewInt(200_000_000),
		FeeRateBps:        0,
		VerifyingContract: testExchange,
		TargetActivityID:  42,
	}
}

func validTransferRequest() domain.TransferRequest {
	return domain.TransferRequest{
		RequestBase: domain.RequestBase{
			UserID:        7,
			WalletRef:     "wallet-ref-1",
			WalletAddress: testWallet,
			ChainID:       137,
		},
		TokenAddress:     testUSDC,
		RecipientAddress: testTeamWallet,
		Amount:           big.NewInt(1_000_000_000), // 1000 USDC, 1% of 100k
		TargetActivityID: 42,
	}
}

func validAllowanceRequest() domain.AllowanceRequest {
	return domain.AllowanceRequest{
		RequestBase: domain.RequestBase{
			UserID:        7,
			WalletRef:     "wallet-ref-1",
			WalletAddress: testWallet,
			ChainID:       137,
		},
		TokenAddress:   testUSDC,
		SpenderAddress: testExchange,
		Amount:         big.NewInt(500_000_000),
	}
}

func TestSignOrderSuccess(t *testing.T) {
	f := newFixture()

	res := f.svc.SignOrder(context.Background(), validOrderRequest(), RequestMeta{IPAddress: "10.0.0.1", ServiceName: "copytrader"})

	assert.True(t, res.Success)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.NotEmpty(t, res.Signature)
	assert.NotZero(t, res.AuditID)
	assert.Equal(t, 1, f.signer.callCount())
	assert.Equal(t, "wallet-ref-1", f.signer.lastRef)

	entry := f.audit.last(t)
	assert.Equal(t, domain.KindOrder, entry.Kind)
	assert.Equal(t, domain.OutcomeSuccess, entry.Outcome)
	assert.Equal(t, res.Signature, entry.Signature)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, "copytrader", entry.ServiceName)
	require.NotNil(t, entry.TargetActivityID)
	assert.Equal(t, int64(42), *entry.TargetActivityID)

	assert.True(t, f.ledger.activities[42].OrderSigned)
}

func TestSignOrderReplayRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.svc.SignOrder(ctx, validOrderRequest(), RequestMeta{})
	require.True(t, first.Success)

	second := f.svc.SignOrder(ctx, validOrderRequest(), RequestMeta{})
	assert.False(t, second.Success)
	assert.Equal(t, domain.OutcomeRejected, second.Outcome)
	assert.Equal(t, domain.ReasonReplayDetected, second.Reason)
	assert.False(t, second.Retryable())
	assert.Equal(t, 1, f.signer.callCount())
	assert.Equal(t, 2, f.audit.count())
}

func TestSignOrderUnknownActivity(t *testing.T) {
	f := newFixture()
	req := validOrderRequest()
	req.TargetActivityID = 999

	res := f.svc.SignOrder(context.Background(), req, RequestMeta{})

	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, domain.ReasonActivityNotFound, res.Reason)
	assert.Zero(t, f.signer.callCount())
}

func TestSignOrderActivityMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.OrderRequest)
	}{
		{"wrong token", func(r *domain.OrderRequest) { r.TokenID = "654321" }},
		{"wrong side", func(r *domain.OrderRequest) { r.Side = domain.SideSell }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := validOrderRequest()
			tt.mutate(&req)

			res := f.svc.SignOrder(context.Background(), req, RequestMeta{})

			assert.Equal(t, domain.OutcomeRejected, res.Outcome)
			assert.Equal(t, domain.ReasonActivityMismatch, res.Reason)
			assert.Zero(t, f.signer.callCount())
			assert.False(t, f.ledger.activities[42].OrderSigned)
		})
	}
}

func TestSignOrderForeignActivity(t *testing.T) {
	f := newFixture()
	req := validOrderRequest()
	req.UserID = 8 // activity 42 belongs to user 7

	res := f.svc.SignOrder(context.Background(), req, RequestMeta{})

	assert.Equal(t, domain.ReasonActivityMismatch, res.Reason)
	assert.False(t, f.ledger.activities[42].OrderSigned)
}

func TestSignOrderMalformedSkipsLedger(t *testing.T) {
	f := newFixture()
	req := validOrderRequest()
	req.WalletAddress = "not-an-address"

	res := f.svc.SignOrder(context.Background(), req, RequestMeta{})

	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, domain.ReasonMalformedRequest, res.Reason)
	assert.Zero(t, f.ledger.getCalls)
	assert.Zero(t, f.signer.callCount())

	entry := f.audit.last(t)
	assert.Equal(t, domain.OutcomeRejected, entry.Outcome)
	assert.NotEmpty(t, entry.Detail)
}

func TestSignOrderLedgerDown(t *testing.T) {
	f := newFixture()
	f.ledger.getErr = fmt.Errorf("%w: connection refused", domain.ErrLedgerUnavailable)

	res := f.svc.SignOrder(context.Background(), validOrderRequest(), RequestMeta{})

	assert.Equal(t, domain.OutcomeError, res.Outcome)
	assert.Equal(t, domain.ReasonLedgerUnreachable, res.Reason)
	assert.True(t, res.Retryable())
	assert.Zero(t, f.signer.callCount())
}

func TestSignOrderSignerFailureKeepsReservation(t *testing.T) {
	f := newFixture()
	f.signer.err = errors.New("provider timeout")
	ctx := context.Background()

	res := f.svc.SignOrder(ctx, validOrderRequest(), RequestMeta{})

	assert.Equal(t, domain.OutcomeError, res.Outcome)
	assert.Equal(t, domain.ReasonSigningProviderFailure, res.Reason)
	assert.Empty(t, res.Signature)
	assert.True(t, f.ledger.activities[42].OrderSigned, "reservation must stand")

	// A retry after the provider recovers is refused as a replay.
	f.signer.err = nil
	retry := f.svc.SignOrder(ctx, validOrderRequest(), RequestMeta{})
	assert.Equal(t, domain.ReasonReplayDetected, retry.Reason)
}

func TestSignOrderConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	const attempts = 16

	results := make([]domain.SignResult, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.SignOrder(context.Background(), validOrderRequest(), RequestMeta{})
		}(i)
	}
	wg.Wait()

	successes := 0
	replays := 0
	for _, res := range results {
		switch {
		case res.Success:
			successes++
		case res.Reason == domain.ReasonReplayDetected:
			replays++
		}
	}

	assert.Equal(t, 1, successes, "exactly one attempt may win the reservation")
	assert.Equal(t, attempts-1, replays)
	assert.Equal(t, 1, f.signer.callCount())
	assert.Equal(t, attempts, f.audit.count())
}

func TestSignOrderAuditWriteFailed(t *testing.T) {
	f := newFixture()
	f.audit.appendErr = errors.New("disk full")

	res := f.svc.SignOrder(context.Background(), validOrderRequest(), RequestMeta{})

	assert.False(t, res.Success)
	assert.Equal(t, domain.OutcomeError, res.Outcome)
	assert.Equal(t, domain.ReasonAuditWriteFailed, res.Reason)
	assert.Empty(t, res.Signature, "unaudited signatures must not be released")
	assert.True(t, res.Retryable())
}

func TestSignTransferSuccess(t *testing.T) {
	f := newFixture()

	res := f.svc.SignTransfer(context.Background(), validTransferRequest(), RequestMeta{})

	assert.True(t, res.Success)
	assert.True(t, f.ledger.activities[42].CommissionSigned)
	assert.False(t, f.ledger.activities[42].OrderSigned, "order flag is independent")

	entry := f.audit.last(t)
	assert.Equal(t, domain.KindTransfer, entry.Kind)
	assert.InDelta(t, 1000.0, entry.AmountUSDC, 1e-9)
}

func TestSignTransferCommissionMismatchConsumesSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := validTransferRequest()
	req.Amount = big.NewInt(2_000_000_000) // 2000 USDC, double the expected fee

	res := f.svc.SignTransfer(ctx, req, RequestMeta{})

	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, domain.ReasonCommissionMismatch, res.Reason)
	assert.Zero(t, f.signer.callCount())
	assert.True(t, f.ledger.activities[42].CommissionSigned, "rejected amount still consumes the slot")

	// Probing again with the correct amount is refused as a replay.
	retry := f.svc.SignTransfer(ctx, validTransferRequest(), RequestMeta{})
	assert.Equal(t, domain.ReasonReplayDetected, retry.Reason)
	assert.Zero(t, f.signer.callCount())
}

func TestSignTransferWithinTolerance(t *testing.T) {
	f := newFixture()

	req := validTransferRequest()
	req.Amount = big.NewInt(999_000_000) // 999 USDC, on the tolerance boundary

	res := f.svc.SignTransfer(context.Background(), req, RequestMeta{})
	assert.True(t, res.Success)
}

func TestSignTransferUnwhitelistedRecipient(t *testing.T) {
	f := newFixture()

	req := validTransferRequest()
	req.RecipientAddress = "0x2222222222222222222222222222222222222222"

	res := f.svc.SignTransfer(context.Background(), req, RequestMeta{})

	assert.Equal(t, domain.ReasonMalformedRequest, res.Reason)
	assert.Zero(t, f.ledger.getCalls)
}

func TestSignAllowanceSuccess(t *testing.T) {
	f := newFixture()

	res := f.svc.SignAllowance(context.Background(), validAllowanceRequest(), RequestMeta{})

	assert.True(t, res.Success)
	assert.Zero(t, f.ledger.getCalls, "allowances never touch the ledger")

	entry := f.audit.last(t)
	assert.Equal(t, domain.KindAllowance, entry.Kind)
	assert.Nil(t, entry.TargetActivityID)
}

func TestSignAllowanceUnwhitelistedSpender(t *testing.T) {
	f := newFixture()

	req := validAllowanceRequest()
	req.SpenderAddress = "0x3333333333333333333333333333333333333333"

	res := f.svc.SignAllowance(context.Background(), req, RequestMeta{})

	assert.Equal(t, domain.ReasonMalformedRequest, res.Reason)
	assert.Zero(t, f.signer.callCount())
}

func TestEveryOutcomeIsAudited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.svc.SignOrder(ctx, validOrderRequest(), RequestMeta{}) // success
	f.svc.SignOrder(ctx, validOrderRequest(), RequestMeta{}) // replay
	bad := validOrderRequest()
	bad.TokenID = ""
	f.svc.SignOrder(ctx, bad, RequestMeta{}) // malformed

	assert.Equal(t, 3, f.audit.count())
}
