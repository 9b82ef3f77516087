// Package billing contains the application services orchestrating the
// fiscal billing domain: reading ingestion and bill generation, penalty
// runs, the payment cascade, year views and statements.
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
)

// RepositoryBundle exposes the repositories participating in one unit of
// work. Repositories obtained from a bundle share a transaction.
type RepositoryBundle interface {
	Bills() billing.BillRepository
	Readings() billing.MeterReadingRepository
	CreditBalances() credit.BalanceRepository
	CreditTransactions() credit.TransactionRepository
	YearMarkers() billing.YearMarkerRepository
}

// UnitOfWork runs fn atomically: either every repository write inside fn
// commits, or none does. The payment cascade depends on this to keep
// bills, credit and year markers consistent.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos RepositoryBundle) error) error
}

// PolicyProvider resolves the billing policy of a client.
type PolicyProvider interface {
	PolicyFor(ctx context.Context, clientID uuid.UUID) (billing.Policy, error)
}

// StaticPolicyProvider serves the same policy to every client, backed by
// service configuration. Per-client overrides plug in behind the same
// interface.
type StaticPolicyProvider struct {
	policy billing.Policy
}

// NewStaticPolicyProvider creates a provider serving one fixed policy
func NewStaticPolicyProvider(policy billing.Policy) *StaticPolicyProvider {
	return &StaticPolicyProvider{policy: policy}
}

// PolicyFor returns the configured policy
func (p *StaticPolicyProvider) PolicyFor(_ context.Context, _ uuid.UUID) (billing.Policy, error) {
	if err := p.policy.Validate(); err != nil {
		return billing.Policy{}, err
	}
	return p.policy, nil
}

// YearViewCache stores rendered year views keyed by client, unit and
// fiscal year; the client-wide view lives under the nil unit ID. BuiltAt
// carries the marker timestamp the view was built against so staleness
// is detected by comparison, not TTL alone.
type YearViewCache interface {
	Get(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) (*CachedYearView, error)
	Set(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int, view *CachedYearView) error
	Invalidate(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) error
}

// CachedYearView is the cache envelope around a rendered view. Exactly
// one of View and ClientView is set, matching the key's unit ID.
type CachedYearView struct {
	View       *YearView       `json:"view,omitempty"`
	ClientView *ClientYearView `json:"client_view,omitempty"`
	BuiltAt    time.Time       `json:"built_at"`
}
