package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/currency"
	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func defaultRates() currency.StaticSource {
	return currency.NewStaticSource(domain.DefaultCurrencyRates())
}

// fakeStore is an in-memory settlement store. It implements every repository
// interface of the package; WithTx runs fn directly.
type fakeStore struct {
	mu          sync.Mutex
	commissions map[string]domain.Commission
	payouts     map[string]domain.Payout
	payees      map[domain.PayeeKey]domain.Payee
	attempts    map[string][]string
	locks       []string

	// attachLimit, when positive, caps how many commissions one attach call
	// links, as if a concurrent writer took the rest.
	attachLimit int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		commissions: make(map[string]domain.Commission),
		payouts:     make(map[string]domain.Payout),
		payees:      make(map[domain.PayeeKey]domain.Payee),
		attempts:    make(map[string][]string),
	}
}

func (f *fakeStore) addPayee(t domain.PayeeType, id string) {
	f.payees[domain.PayeeKey{Type: t, ID: id}] = domain.Payee{ID: id, Type: t, Name: "payee " + id}
}

func (f *fakeStore) addCommissions(cs ...domain.Commission) {
	for _, c := range cs {
		f.commissions[c.ID] = c
	}
}

func (f *fakeStore) commission(id string) domain.Commission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commissions[id]
}

func (f *fakeStore) sortedCommissions() []domain.Commission {
	out := make([]domain.Commission, 0, len(f.commissions))
	for _, c := range f.commissions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// releasedCommission builds a RELEASED commission with net equal to the order
// amount and no platform share.
func releasedCommission(id, payeeID, cur, net string, capturedAt time.Time) domain.Commission {
	amount := dec(net)
	at := capturedAt
	return domain.Commission{
		ID:               id,
		OrderID:          "order-" + id,
		PayeeID:          payeeID,
		PayeeType:        domain.PayeeStore,
		OrderAmount:      amount,
		CommissionAmount: decimal.Zero,
		NetAmount:        amount,
		Currency:         cur,
		RateApplied:      decimal.Zero,
		Status:           domain.CommissionReleased,
		HoldUntil:        capturedAt,
		CapturedAt:       capturedAt,
		ReleasedAt:       &at,
		ReleasedBy:       domain.ReleasedBySweep,
		CreatedAt:        capturedAt,
		UpdatedAt:        capturedAt,
	}
}

func heldCommission(id, payeeID, cur, net string, capturedAt, holdUntil time.Time) domain.Commission {
	c := releasedCommission(id, payeeID, cur, net, capturedAt)
	c.Status = domain.CommissionHeld
	c.HoldUntil = holdUntil
	c.ReleasedAt = nil
	c.ReleasedBy = ""
	return c
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) FindCommissionByOrderPayee(_ context.Context, orderID, payeeID string) (*domain.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commissions {
		if c.OrderID == orderID && c.PayeeID == payeeID {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateCommission(_ context.Context, c domain.Commission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.commissions {
		if existing.OrderID == c.OrderID && existing.PayeeID == c.PayeeID {
			return domain.ErrIdempotencyConflict
		}
	}
	f.commissions[c.ID] = c
	return nil
}

func (f *fakeStore) GetCommissionForUpdate(_ context.Context, id string) (domain.Commission, error) {
	return f.GetCommission(context.Background(), id)
}

func (f *fakeStore) GetCommission(_ context.Context, id string) (domain.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commissions[id]
	if !ok {
		return domain.Commission{}, domain.ErrCommissionNotFound
	}
	return c, nil
}

func (f *fakeStore) ListOrderCommissionsForUpdate(_ context.Context, orderID string) ([]domain.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Commission
	for _, c := range f.sortedCommissions() {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReleased(_ context.Context, id string, at time.Time, by string, dueBy *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commissions[id]
	if !ok || c.Status != domain.CommissionHeld {
		return false, nil
	}
	if dueBy != nil && dueBy.Before(c.HoldUntil) {
		return false, nil
	}
	c.Status = domain.CommissionReleased
	c.ReleasedAt = &at
	c.ReleasedBy = by
	c.UpdatedAt = at
	f.commissions[id] = c
	return true, nil
}

func (f *fakeStore) MarkRefunded(_ context.Context, id string, at time.Time, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.commissions[id]
	if !ok || c.Status != domain.CommissionHeld {
		return false, nil
	}
	c.Status = domain.CommissionRefunded
	c.RefundedAt = &at
	c.RefundReason = reason
	c.UpdatedAt = at
	f.commissions[id] = c
	return true, nil
}

func (f *fakeStore) ListDueHolds(_ context.Context, dueBy *time.Time, afterID string, limit int) ([]domain.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Commission
	for _, c := range f.sortedCommissions() {
		if c.ID <= afterID || c.Status != domain.CommissionHeld {
			continue
		}
		if dueBy != nil && dueBy.Before(c.HoldUntil) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) GetPayee(_ context.Context, payeeType domain.PayeeType, id string) (domain.Payee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payees[domain.PayeeKey{Type: payeeType, ID: id}]
	if !ok {
		return domain.Payee{}, domain.ErrPayeeNotFound
	}
	return p, nil
}

func (f *fakeStore) LockPayeeCurrency(_ context.Context, payeeType domain.PayeeType, payeeID, cur string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks = append(f.locks, string(payeeType)+":"+payeeID+":"+cur)
	return nil
}

func (f *fakeStore) GetCommissionsForUpdate(_ context.Context, ids []string) ([]domain.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Commission
	for _, id := range ids {
		if c, ok := f.commissions[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAvailableCommissions(_ context.Context, q AvailableQuery) ([]domain.Commission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Commission
	for _, c := range f.sortedCommissions() {
		if c.Status != domain.CommissionReleased || c.Attached() {
			continue
		}
		if c.PayeeID != q.PayeeID || c.PayeeType != q.PayeeType {
			continue
		}
		if q.Currency != "" && c.Currency != q.Currency {
			continue
		}
		if c.CapturedAt.Before(q.Start) || !c.CapturedAt.Before(q.End) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

func (f *fakeStore) ListPayeesWithAvailable(_ context.Context, start, end time.Time) ([]domain.PayeeKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[domain.PayeeKey]bool)
	var out []domain.PayeeKey
	for _, c := range f.sortedCommissions() {
		if c.Status != domain.CommissionReleased || c.Attached() {
			continue
		}
		if c.CapturedAt.Before(start) || !c.CapturedAt.Before(end) {
			continue
		}
		key := domain.PayeeKey{Type: c.PayeeType, ID: c.PayeeID}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreatePayout(_ context.Context, p domain.Payout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payouts[p.ID] = p
	return nil
}

func (f *fakeStore) AttachCommissions(_ context.Context, payoutID string, commissions []domain.Commission, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range commissions {
		if f.attachLimit > 0 && n == int64(f.attachLimit) {
			break
		}
		stored := f.commissions[c.ID]
		if stored.Status != domain.CommissionReleased || stored.Attached() {
			continue
		}
		stored.PayoutID = payoutID
		stored.UpdatedAt = at
		f.commissions[c.ID] = stored
		f.attempts[payoutID] = append(f.attempts[payoutID], c.ID)
		n++
	}
	return n, nil
}

func (f *fakeStore) GetPayoutForUpdate(_ context.Context, id string) (domain.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[id]
	if !ok {
		return domain.Payout{}, domain.ErrPayoutNotFound
	}
	return p, nil
}

func (f *fakeStore) payout(id string) domain.Payout {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payouts[id]
}

func (f *fakeStore) UpdatePayout(_ context.Context, p domain.Payout, from domain.PayoutStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.payouts[p.ID]
	if !ok {
		return domain.ErrPayoutNotFound
	}
	if stored.Status != from {
		return domain.ErrConcurrencyConflict
	}
	f.payouts[p.ID] = p
	return nil
}

func (f *fakeStore) MarkCommissionsPaid(_ context.Context, payoutID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.commissions {
		if c.PayoutID != payoutID || c.Status != domain.CommissionReleased {
			continue
		}
		c.Status = domain.CommissionPaid
		c.PaidAt = &at
		c.UpdatedAt = at
		f.commissions[id] = c
		n++
	}
	return n, nil
}

func (f *fakeStore) DetachCommissions(_ context.Context, payoutID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.commissions {
		if c.PayoutID != payoutID || c.Status != domain.CommissionReleased {
			continue
		}
		c.PayoutID = ""
		c.UpdatedAt = at
		f.commissions[id] = c
		n++
	}
	return n, nil
}

func (f *fakeStore) ListPayouts(_ context.Context, filter PayoutFilter) ([]domain.PayoutView, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Payout
	for _, p := range f.payouts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.PayeeID != "" && p.PayeeID != filter.PayeeID {
			continue
		}
		if filter.PayeeType != "" && p.PayeeType != filter.PayeeType {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	views := make([]domain.PayoutView, 0, end-start)
	for _, p := range all[start:end] {
		views = append(views, f.viewLocked(p))
	}
	return views, total, nil
}

func (f *fakeStore) GetPayoutView(_ context.Context, id string) (domain.PayoutView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[id]
	if !ok {
		return domain.PayoutView{}, domain.ErrPayoutNotFound
	}
	view := f.viewLocked(p)
	for _, cid := range f.attempts[id] {
		view.Commissions = append(view.Commissions, f.commissions[cid])
	}
	return view, nil
}

func (f *fakeStore) viewLocked(p domain.Payout) domain.PayoutView {
	view := domain.PayoutView{Payout: p}
	if payee, ok := f.payees[domain.PayeeKey{Type: p.PayeeType, ID: p.PayeeID}]; ok {
		view.Payee = &payee
	}
	return view
}

func (f *fakeStore) ListCommissions(_ context.Context, filter CommissionFilter) ([]domain.Commission, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.Commission
	for _, c := range f.sortedCommissions() {
		if filter.PayeeID != "" && c.PayeeID != filter.PayeeID {
			continue
		}
		if filter.PayeeType != "" && c.PayeeType != filter.PayeeType {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.OrderID != "" && c.OrderID != filter.OrderID {
			continue
		}
		all = append(all, c)
	}
	total := len(all)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeStore) PayoutTotals(_ context.Context, filter StatsFilter) ([]domain.StatusTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index := make(map[[2]string]int)
	var out []domain.StatusTotal
	for _, p := range f.payouts {
		if filter.PayeeID != "" && p.PayeeID != filter.PayeeID {
			continue
		}
		key := [2]string{string(p.Status), p.Currency}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, domain.StatusTotal{Status: key[0], Currency: key[1], Amount: decimal.Zero})
		}
		out[i].Count++
		out[i].Amount = out[i].Amount.Add(p.Amount)
	}
	return out, nil
}

func (f *fakeStore) CommissionTotals(_ context.Context, filter StatsFilter) ([]domain.StatusTotal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commissionTotalsLocked(func(c domain.Commission) bool {
		return filter.PayeeID == "" || c.PayeeID == filter.PayeeID
	}), nil
}

func (f *fakeStore) EscrowBalances(_ context.Context, payeeType domain.PayeeType, payeeID string) ([]domain.StatusTotal, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next *time.Time
	for _, c := range f.commissions {
		if c.PayeeID != payeeID || c.PayeeType != payeeType || c.Status != domain.CommissionHeld {
			continue
		}
		if next == nil || c.HoldUntil.Before(*next) {
			h := c.HoldUntil
			next = &h
		}
	}
	totals := f.commissionTotalsLocked(func(c domain.Commission) bool {
		return c.PayeeID == payeeID && c.PayeeType == payeeType
	})
	return totals, next, nil
}

func (f *fakeStore) commissionTotalsLocked(match func(domain.Commission) bool) []domain.StatusTotal {
	index := make(map[[2]string]int)
	var out []domain.StatusTotal
	for _, c := range f.sortedCommissions() {
		if !match(c) {
			continue
		}
		key := [2]string{string(c.Status), c.Currency}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, domain.StatusTotal{Status: key[0], Currency: key[1], Amount: decimal.Zero, Commission: decimal.Zero})
		}
		out[i].Count++
		out[i].Amount = out[i].Amount.Add(c.NetAmount)
		out[i].Commission = out[i].Commission.Add(c.CommissionAmount)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
