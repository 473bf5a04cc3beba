package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

// Ledger is a runner's cash account. Available = Budget + Realized - Reserved.
type Ledger struct {
	Budget   decimal.Decimal `json:"budget"`
	Reserved decimal.Decimal `json:"reserved"`
	Realized decimal.Decimal `json:"realized"`
}

func (l Ledger) Available() decimal.Decimal {
	return l.Budget.Add(l.Realized).Sub(l.Reserved)
}

type positionKey struct {
	runnerID uint
	symbol   string
}

type BrokerResetOptions struct {
	ResetAccount       bool
	ClearOrders        bool
	ClearOpenPositions bool
}

type BrokerState struct {
	Ledgers    map[uint]Ledger `json:"ledgers"`
	Positions  []Position      `json:"positions"`
	NextFillID uint            `json:"next_fill_id"`
}

// MockBroker simulates order execution against historical bars. All methods
// are safe for concurrent use; a position leaves the book exactly once.
type MockBroker struct {
	mu              sync.Mutex
	commissionRatio decimal.Decimal
	ledgers         map[uint]*Ledger
	positions       map[positionKey]*Position
	fills           []*Fill
	nextFillID      uint
}

func (b *MockBroker) CommissionRatio() decimal.Decimal {
	return b.commissionRatio
}

// RegisterRunner opens a ledger for the runner or updates its budget.
func (b *MockBroker) RegisterRunner(r *Runner) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.ledgers[r.ID]; ok {
		l.Budget = r.Budget
		return
	}

	b.ledgers[r.ID] = &Ledger{Budget: r.Budget}
}

func (b *MockBroker) RemoveRunner(runnerID uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.positions {
		if key.runnerID == runnerID {
			return fmt.Errorf("MockBroker.RemoveRunner: runner %d: %w", runnerID, ErrOpenPosition)
		}
	}

	delete(b.ledgers, runnerID)
	return nil
}

func (b *MockBroker) Ledger(runnerID uint) (Ledger, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.ledgers[runnerID]
	if !ok {
		return Ledger{}, false
	}

	return *l, true
}

func (b *MockBroker) Position(runnerID uint, symbol string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[positionKey{runnerID: runnerID, symbol: symbol}]
	if !ok {
		return Position{}, false
	}

	return *p, true
}

// Positions returns the open book ordered by runner and symbol.
func (b *MockBroker) Positions() []Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.positionsLocked()
}

func (b *MockBroker) positionsLocked() []Position {
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RunnerID == out[j].RunnerID {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].RunnerID < out[j].RunnerID
	})

	return out
}

func (b *MockBroker) Fills() []Fill {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Fill, 0, len(b.fills))
	for _, f := range b.fills {
		out = append(out, *f)
	}

	return out
}

func (b *MockBroker) PlaceOrder(r *Runner, req OrderRequest) (*Execution, error) {
	if req.Price <= 0 {
		return nil, fmt.Errorf("MockBroker.PlaceOrder: invalid price %v", req.Price)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch req.Side {
	case OrderSideBuy:
		return b.openLocked(r, req)
	case OrderSideSell:
		key := positionKey{runnerID: r.ID, symbol: req.Symbol}
		if _, ok := b.positions[key]; !ok {
			return nil, fmt.Errorf("MockBroker.PlaceOrder: runner %d %s: %w", r.ID, req.Symbol, ErrNoPosition)
		}

		reason := req.Reason
		if reason == "" {
			reason = ExitReasonSignal
		}

		return b.closeLocked(key, req.Price, req.Epoch, reason), nil
	default:
		return nil, fmt.Errorf("MockBroker.PlaceOrder: unknown side %q", req.Side)
	}
}

func (b *MockBroker) openLocked(r *Runner, req OrderRequest) (*Execution, error) {
	key := positionKey{runnerID: r.ID, symbol: req.Symbol}
	if _, ok := b.positions[key]; ok {
		return nil, fmt.Errorf("MockBroker.PlaceOrder: runner %d %s: %w", r.ID, req.Symbol, ErrPositionExists)
	}

	ledger, ok := b.ledgers[r.ID]
	if !ok {
		return nil, fmt.Errorf("MockBroker.PlaceOrder: runner %d: %w", r.ID, ErrRunnerNotFound)
	}

	price := decimal.NewFromFloat(req.Price)
	available := ledger.Available()

	var notional decimal.Decimal
	switch {
	case req.Quantity > 0:
		notional = price.Mul(decimal.NewFromFloat(req.Quantity))
	case req.Notional.IsPositive():
		notional = req.Notional
	default:
		notional = available.Div(decimal.NewFromInt(1).Add(b.commissionRatio)).Truncate(8)
	}

	if !notional.IsPositive() {
		return nil, fmt.Errorf("MockBroker.PlaceOrder: runner %d has %s available: %w", r.ID, available.StringFixed(2), ErrInsufficientBudget)
	}

	commission := notional.Mul(b.commissionRatio)
	if notional.Add(commission).GreaterThan(available) {
		return nil, fmt.Errorf("MockBroker.PlaceOrder: runner %d needs %s, has %s: %w", r.ID, notional.Add(commission).StringFixed(2), available.StringFixed(2), ErrInsufficientBudget)
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = notional.Div(price).InexactFloat64()
	}

	ledger.Reserved = ledger.Reserved.Add(notional)
	ledger.Realized = ledger.Realized.Sub(commission)

	b.positions[key] = &Position{
		RunnerID:        r.ID,
		Symbol:          req.Symbol,
		Strategy:        r.Strategy,
		Timeframe:       r.Timeframe,
		Quantity:        quantity,
		EntryPrice:      req.Price,
		EntryEpoch:      req.Epoch,
		Notional:        notional,
		EntryCommission: commission,
		HighWater:       req.Price,
		LastPrice:       req.Price,
		ExpiresAt:       r.ExpiryEpoch(),
		ExitRules:       append([]ExitRule(nil), r.ExitStrategy...),
	}

	fill := b.recordFillLocked(r.ID, req.Symbol, OrderSideBuy, quantity, req.Price, req.Epoch, commission, req.Reason)
	return &Execution{Fill: fill}, nil
}

// closeLocked removes the position from the book before recording the exit.
func (b *MockBroker) closeLocked(key positionKey, price float64, epoch int64, reason string) *Execution {
	pos := b.positions[key]
	delete(b.positions, key)

	exitNotional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(pos.Quantity))
	exitCommission := exitNotional.Mul(b.commissionRatio)
	pnl := exitNotional.Sub(pos.Notional).Sub(pos.EntryCommission).Sub(exitCommission)

	if ledger, ok := b.ledgers[key.runnerID]; ok {
		ledger.Reserved = ledger.Reserved.Sub(pos.Notional)
		ledger.Realized = ledger.Realized.Add(exitNotional.Sub(pos.Notional).Sub(exitCommission))
	}

	pnlPercent := decimal.Zero
	if pos.Notional.IsPositive() {
		pnlPercent = pnl.Div(pos.Notional).Mul(hundred)
	}

	fill := b.recordFillLocked(key.runnerID, key.symbol, OrderSideSell, pos.Quantity, price, epoch, exitCommission, reason)
	result := &ResultRecord{
		ID:         uuid.New(),
		RunnerID:   key.runnerID,
		Symbol:     key.symbol,
		Strategy:   pos.Strategy,
		Timeframe:  pos.Timeframe,
		OpenEpoch:  pos.EntryEpoch,
		CloseEpoch: epoch,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Notional:   pos.Notional,
		Commission: pos.EntryCommission.Add(exitCommission),
		PnlAmount:  pnl,
		PnlPercent: pnlPercent,
		ExitReason: reason,
	}

	log.WithFields(log.Fields{
		"runner": key.runnerID,
		"symbol": key.symbol,
		"reason": reason,
		"pnl":    pnl.StringFixed(2),
	}).Debug("position closed")

	return &Execution{Fill: fill, Result: result}
}

func (b *MockBroker) recordFillLocked(runnerID uint, symbol string, side OrderSide, quantity, price float64, epoch int64, commission decimal.Decimal, reason string) *Fill {
	b.nextFillID++
	fill := &Fill{
		ID:         b.nextFillID,
		RunnerID:   runnerID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Epoch:      epoch,
		Commission: commission,
		Reason:     reason,
	}

	b.fills = append(b.fills, fill)
	return fill
}

// SettleBar marks the runner's position in the bar's symbol and closes it if
// an exit rule triggers. The trailing high-water mark is raised only after
// the rules were checked against the prior mark.
func (b *MockBroker) SettleBar(runnerID uint, bar *Bar) (*Execution, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := positionKey{runnerID: runnerID, symbol: bar.Symbol}
	pos, ok := b.positions[key]
	if !ok {
		return nil, false
	}

	if signal, hit := EvaluateExits(*pos, *bar); hit {
		return b.closeLocked(key, signal.Price, bar.EndEpoch(), string(signal.Reason)), true
	}

	if bar.High > pos.HighWater {
		pos.HighWater = bar.High
	}
	pos.LastPrice = bar.Close

	return nil, false
}

// CloseAll force-closes every open position at its last marked price.
func (b *MockBroker) CloseAll(epoch int64) []*Execution {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Execution
	for _, p := range b.positionsLocked() {
		key := positionKey{runnerID: p.RunnerID, symbol: p.Symbol}
		out = append(out, b.closeLocked(key, p.LastPrice, epoch, ExitReasonForced))
	}

	return out
}

// CloseRunner flattens every position held by one runner.
func (b *MockBroker) CloseRunner(runnerID uint, epoch int64) []*Execution {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Execution
	for _, p := range b.positionsLocked() {
		if p.RunnerID != runnerID {
			continue
		}

		key := positionKey{runnerID: p.RunnerID, symbol: p.Symbol}
		out = append(out, b.closeLocked(key, p.LastPrice, epoch, ExitReasonRemoved))
	}

	return out
}

func (b *MockBroker) CheckInvariants() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, l := range b.ledgers {
		if l.Available().IsNegative() {
			return fmt.Errorf("%w: runner %d cash %s is negative", ErrBrokerInvariantViolation, id, l.Available().StringFixed(2))
		}
	}

	for key, p := range b.positions {
		if p.Quantity <= 0 {
			return fmt.Errorf("%w: runner %d %s quantity %v", ErrBrokerInvariantViolation, key.runnerID, key.symbol, p.Quantity)
		}
	}

	return nil
}

// Reset clears broker state according to opts and returns deleted counts.
func (b *MockBroker) Reset(opts BrokerResetOptions) map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[string]int64)
	if opts.ClearOpenPositions {
		counts["positions"] = int64(len(b.positions))
		for key, p := range b.positions {
			if l, ok := b.ledgers[key.runnerID]; ok {
				l.Reserved = l.Reserved.Sub(p.Notional)
			}
			delete(b.positions, key)
		}
	}

	if opts.ClearOrders {
		counts["fills"] = int64(len(b.fills))
		b.fills = nil
		b.nextFillID = 0
	}

	if opts.ResetAccount {
		for _, l := range b.ledgers {
			l.Realized = decimal.Zero
			l.Reserved = decimal.Zero
		}

		for _, p := range b.positions {
			b.ledgers[p.RunnerID].Reserved = b.ledgers[p.RunnerID].Reserved.Add(p.Notional)
		}
		counts["accounts"] = int64(len(b.ledgers))
	}

	return counts
}

func (b *MockBroker) State() BrokerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	ledgers := make(map[uint]Ledger, len(b.ledgers))
	for id, l := range b.ledgers {
		ledgers[id] = *l
	}

	return BrokerState{
		Ledgers:    ledgers,
		Positions:  b.positionsLocked(),
		NextFillID: b.nextFillID,
	}
}

// Restore replaces ledgers and the open book with a checkpointed state.
func (b *MockBroker) Restore(state BrokerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ledgers = make(map[uint]*Ledger, len(state.Ledgers))
	for id, l := range state.Ledgers {
		cp := l
		b.ledgers[id] = &cp
	}

	b.positions = make(map[positionKey]*Position, len(state.Positions))
	for _, p := range state.Positions {
		cp := p
		b.positions[positionKey{runnerID: p.RunnerID, symbol: p.Symbol}] = &cp
	}

	b.nextFillID = state.NextFillID
}

func NewMockBroker(commissionRatio decimal.Decimal) *MockBroker {
	return &MockBroker{
		commissionRatio: commissionRatio,
		ledgers:         make(map[uint]*Ledger),
		positions:       make(map[positionKey]*Position),
	}
}
