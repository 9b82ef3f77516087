package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/credit"
	"github.com/propman/backend/internal/domain/shared"
)

// memStore is an in-memory RepositoryBundle and UnitOfWork used by the
// service tests. It keeps the same optimistic-locking semantics as the
// persistence layer; lock failures can be injected for conflict tests.
type memStore struct {
	mu            sync.Mutex
	bills         map[uuid.UUID]*billing.Bill
	readings      map[string]*billing.MeterReading
	balances      map[uuid.UUID]*credit.CreditBalance
	creditTxns    []*credit.CreditTransaction
	markers       map[string]time.Time
	failBillSaves int
}

func newMemStore() *memStore {
	return &memStore{
		bills:    make(map[uuid.UUID]*billing.Bill),
		readings: make(map[string]*billing.MeterReading),
		balances: make(map[uuid.UUID]*credit.CreditBalance),
		markers:  make(map[string]time.Time),
	}
}

// Execute mimics a database transaction: on error every store reverts to
// its state at entry, so a failed attempt leaves no partial writes
// behind. Transactions run one at a time, like serializable isolation.
func (m *memStore) Execute(_ context.Context, fn func(repos RepositoryBundle) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	bills      map[uuid.UUID]*billing.Bill
	readings   map[string]*billing.MeterReading
	balances   map[uuid.UUID]*credit.CreditBalance
	creditTxns []*credit.CreditTransaction
	markers    map[string]time.Time
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		bills:      make(map[uuid.UUID]*billing.Bill, len(m.bills)),
		readings:   make(map[string]*billing.MeterReading, len(m.readings)),
		balances:   make(map[uuid.UUID]*credit.CreditBalance, len(m.balances)),
		creditTxns: append([]*credit.CreditTransaction(nil), m.creditTxns...),
		markers:    make(map[string]time.Time, len(m.markers)),
	}
	for id, bill := range m.bills {
		snap.bills[id] = cloneJSON(bill)
	}
	for key, reading := range m.readings {
		snap.readings[key] = cloneJSON(reading)
	}
	for id, balance := range m.balances {
		snap.balances[id] = cloneJSON(balance)
	}
	for key, ts := range m.markers {
		snap.markers[key] = ts
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.bills = snap.bills
	m.readings = snap.readings
	m.balances = snap.balances
	m.creditTxns = snap.creditTxns
	m.markers = snap.markers
}

func cloneJSON[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (m *memStore) Bills() billing.BillRepository                    { return (*memBillRepo)(m) }
func (m *memStore) Readings() billing.MeterReadingRepository         { return (*memReadingRepo)(m) }
func (m *memStore) CreditBalances() credit.BalanceRepository         { return (*memBalanceRepo)(m) }
func (m *memStore) CreditTransactions() credit.TransactionRepository { return (*memTxnRepo)(m) }
func (m *memStore) YearMarkers() billing.YearMarkerRepository        { return (*memMarkerRepo)(m) }

func readingKey(clientID, unitID uuid.UUID, p billing.FiscalPeriod) string {
	return fmt.Sprintf("%s/%s/%d/%d", clientID, unitID, p.Year, p.Month)
}

func markerKey(clientID uuid.UUID, year int) string {
	return fmt.Sprintf("%s/%d", clientID, year)
}

type memBillRepo memStore

func (r *memBillRepo) FindByID(_ context.Context, clientID, id uuid.UUID) (*billing.Bill, error) {
	bill, ok := r.bills[id]
	if !ok || bill.ClientID != clientID {
		return nil, shared.ErrNotFound
	}
	return bill, nil
}

func (r *memBillRepo) FindByUnitAndPeriod(_ context.Context, clientID, unitID uuid.UUID, period billing.FiscalPeriod) (*billing.Bill, error) {
	for _, bill := range r.bills {
		if bill.ClientID == clientID && bill.UnitID == unitID && bill.Period.Equal(period) {
			return bill, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memBillRepo) FindOutstandingByUnit(_ context.Context, clientID, unitID uuid.UUID) ([]*billing.Bill, error) {
	var out []*billing.Bill
	for _, bill := range r.bills {
		if bill.ClientID == clientID && bill.UnitID == unitID && bill.Status != billing.BillStatusPaid {
			out = append(out, bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (r *memBillRepo) FindByClientAndYear(_ context.Context, clientID uuid.UUID, fiscalYear int) ([]*billing.Bill, error) {
	var out []*billing.Bill
	for _, bill := range r.bills {
		if bill.ClientID == clientID && bill.Period.Year == fiscalYear {
			out = append(out, bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (r *memBillRepo) FindByUnitAndYear(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int) ([]*billing.Bill, error) {
	var out []*billing.Bill
	for _, bill := range r.bills {
		if bill.ClientID == clientID && bill.UnitID == unitID && bill.Period.Year == fiscalYear {
			out = append(out, bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (r *memBillRepo) FindDueUnpaid(_ context.Context, clientID uuid.UUID, asOf time.Time) ([]*billing.Bill, error) {
	var out []*billing.Bill
	for _, bill := range r.bills {
		if bill.ClientID == clientID && bill.Status != billing.BillStatusPaid &&
			!bill.PenaltyApplied && !asOf.Before(bill.DueDate) {
			out = append(out, bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (r *memBillRepo) ExistsForUnit(_ context.Context, clientID, unitID uuid.UUID) (bool, error) {
	for _, bill := range r.bills {
		if bill.ClientID == clientID && bill.UnitID == unitID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBillRepo) Save(_ context.Context, bill *billing.Bill) error {
	r.bills[bill.ID] = bill
	return nil
}

func (r *memBillRepo) SaveWithLock(_ context.Context, bill *billing.Bill) error {
	if r.failBillSaves > 0 {
		r.failBillSaves--
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "Bill was modified by another transaction")
	}
	r.bills[bill.ID] = bill
	return nil
}

type memReadingRepo memStore

func (r *memReadingRepo) FindByUnitAndPeriod(_ context.Context, clientID, unitID uuid.UUID, period billing.FiscalPeriod) (*billing.MeterReading, error) {
	reading, ok := r.readings[readingKey(clientID, unitID, period)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return reading, nil
}

func (r *memReadingRepo) FindLatestByUnit(_ context.Context, clientID, unitID uuid.UUID) (*billing.MeterReading, error) {
	var latest *billing.MeterReading
	for _, reading := range r.readings {
		if reading.ClientID != clientID || reading.UnitID != unitID {
			continue
		}
		if latest == nil || latest.Period.Before(reading.Period) {
			latest = reading
		}
	}
	if latest == nil {
		return nil, shared.ErrNotFound
	}
	return latest, nil
}

func (r *memReadingRepo) FindByClientAndYear(_ context.Context, clientID uuid.UUID, fiscalYear int) ([]*billing.MeterReading, error) {
	var out []*billing.MeterReading
	for _, reading := range r.readings {
		if reading.ClientID == clientID && reading.Period.Year == fiscalYear {
			out = append(out, reading)
		}
	}
	return out, nil
}

func (r *memReadingRepo) Save(_ context.Context, reading *billing.MeterReading) error {
	r.readings[readingKey(reading.ClientID, reading.UnitID, reading.Period)] = reading
	return nil
}

type memBalanceRepo memStore

func (r *memBalanceRepo) FindByUnit(_ context.Context, clientID, unitID uuid.UUID) (*credit.CreditBalance, error) {
	for _, balance := range r.balances {
		if balance.ClientID == clientID && balance.UnitID == unitID {
			return balance, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memBalanceRepo) Save(_ context.Context, balance *credit.CreditBalance) error {
	r.balances[balance.ID] = balance
	return nil
}

func (r *memBalanceRepo) SaveWithLock(_ context.Context, balance *credit.CreditBalance) error {
	r.balances[balance.ID] = balance
	return nil
}

type memTxnRepo memStore

func (r *memTxnRepo) Create(_ context.Context, txn *credit.CreditTransaction) error {
	r.creditTxns = append(r.creditTxns, txn)
	return nil
}

func (r *memTxnRepo) ListByUnit(_ context.Context, clientID, unitID uuid.UUID, filter shared.Filter) (*shared.Paginated[*credit.CreditTransaction], error) {
	var out []*credit.CreditTransaction
	for _, txn := range r.creditTxns {
		if txn.ClientID == clientID && txn.UnitID == unitID {
			out = append(out, txn)
		}
	}
	page := shared.NewPaginated(out, int64(len(out)), filter.Page, filter.PageSize)
	return &page, nil
}

type memMarkerRepo memStore

func (r *memMarkerRepo) GetLastUpdated(_ context.Context, clientID uuid.UUID, fiscalYear int) (time.Time, error) {
	return r.markers[markerKey(clientID, fiscalYear)], nil
}

func (r *memMarkerRepo) Touch(_ context.Context, clientID uuid.UUID, fiscalYear int) error {
	r.markers[markerKey(clientID, fiscalYear)] = time.Now()
	return nil
}

// memCache is an in-memory YearViewCache for tests.
type memCache struct {
	entries map[string]*CachedYearView
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*CachedYearView)}
}

func cacheKey(clientID, unitID uuid.UUID, fiscalYear int) string {
	return fmt.Sprintf("%s/%s/%d", clientID, unitID, fiscalYear)
}

func (c *memCache) Get(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int) (*CachedYearView, error) {
	entry, ok := c.entries[cacheKey(clientID, unitID, fiscalYear)]
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func (c *memCache) Set(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int, view *CachedYearView) error {
	c.entries[cacheKey(clientID, unitID, fiscalYear)] = view
	return nil
}

func (c *memCache) Invalidate(_ context.Context, clientID, unitID uuid.UUID, fiscalYear int) error {
	delete(c.entries, cacheKey(clientID, unitID, fiscalYear))
	return nil
}
