package eventdriven

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/shopspring/decimal"
)

// quantityEpsilon treats residual quantities from float rounding as flat.
const quantityEpsilon = 1e-9

// Portfolio owns every order, fill and trade of one run. Orders are indexed
// by ID; nothing outside the portfolio holds a reference to them.
type Portfolio struct {
	symbol   string
	cash     decimal.Decimal
	position types.Position
	equity   float64
	peak     float64

	// costs of the open position not yet attributed to a trade
	openCommission float64
	openSlippage   float64
	// equity when the open position was established
	openEquity float64

	orders     map[string]*types.Order
	orderOrder []string
	fills      []types.Fill
	trades     []types.Trade
}

// NewPortfolio creates a flat portfolio holding cash.
func NewPortfolio(symbol string, cash float64) *Portfolio {
	return &Portfolio{
		symbol:   symbol,
		cash:     decimal.NewFromFloat(cash),
		position: types.Position{Symbol: symbol},
		equity:   cash,
		peak:     cash,
		orders:   make(map[string]*types.Order),
		fills:    make([]types.Fill, 0),
		trades:   make([]types.Trade, 0),
	}
}

// Cash returns the cash balance.
func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

// Position returns the current position.
func (p *Portfolio) Position() types.Position {
	return p.position
}

// Equity returns the equity at the last mark.
func (p *Portfolio) Equity() float64 {
	return p.equity
}

// MarkToMarket values the position at price, updates peak equity and returns equity.
func (p *Portfolio) MarkToMarket(price float64) float64 {
	p.position.MarketPrice = price
	p.equity = p.cash.Add(decimal.NewFromFloat(p.position.Quantity).Mul(decimal.NewFromFloat(price))).InexactFloat64()

	if p.equity > p.peak {
		p.peak = p.equity
	}

	return p.equity
}

// Charge deducts a carry cost from cash.
func (p *Portfolio) Charge(amount float64) {
	p.cash = p.cash.Sub(decimal.NewFromFloat(amount))
}

// Submit stores a new order and returns its ID.
func (p *Portfolio) Submit(order types.Order) (string, error) {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	if order.Status == "" {
		order.Status = types.OrderStatusPending
	}

	if err := order.Validate(); err != nil {
		return "", err
	}

	if _, exists := p.orders[order.ID]; exists {
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "duplicate order id %s", order.ID)
	}

	p.orders[order.ID] = &order
	p.orderOrder = append(p.orderOrder, order.ID)

	return order.ID, nil
}

// Order returns a copy of the order with id.
func (p *Portfolio) Order(id string) (types.Order, bool) {
	order, ok := p.orders[id]
	if !ok {
		return types.Order{}, false
	}

	return *order, true
}

// Orders returns copies of every order in submission order.
func (p *Portfolio) Orders() []types.Order {
	out := make([]types.Order, 0, len(p.orderOrder))
	for _, id := range p.orderOrder {
		out = append(out, *p.orders[id])
	}

	return out
}

// Pending returns the IDs of open orders in submission order.
func (p *Portfolio) Pending() []string {
	ids := make([]string, 0)

	for _, id := range p.orderOrder {
		if p.orders[id].IsOpen() {
			ids = append(ids, id)
		}
	}

	return ids
}

// Cancel closes an open order without further fills.
func (p *Portfolio) Cancel(id string, reason string) {
	order, ok := p.orders[id]
	if !ok || !order.IsOpen() {
		return
	}

	order.Status = types.OrderStatusCancelled
	order.Reason = reason
}

// CancelAll cancels every open order.
func (p *Portfolio) CancelAll(reason string) {
	for _, id := range p.Pending() {
		p.Cancel(id, reason)
	}
}

// Fill executes quantity of an open order at price. A fill for less than the
// remaining quantity leaves the order PARTIALLY_FILLED and closes it.
func (p *Portfolio) Fill(id string, quantity float64, price float64, reference float64, commission float64, at time.Time, bar int) (types.Fill, error) {
	order, ok := p.orders[id]
	if !ok {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidOrder, "unknown order %s", id)
	}

	if !order.IsOpen() {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidOrder, "order %s is %s", id, order.Status)
	}

	if !(quantity > 0) || quantity > order.Remaining()+quantityEpsilon {
		return types.Fill{}, errors.Newf(errors.ErrCodeInvalidOrder, "fill quantity %v outside (0, %v]", quantity, order.Remaining())
	}

	order.FilledQuantity += quantity
	if order.Remaining() <= quantityEpsilon {
		order.FilledQuantity = order.Quantity
		order.Status = types.OrderStatusFilled
	} else {
		order.Status = types.OrderStatusPartiallyFilled
	}

	fill := types.Fill{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Type:           order.Type,
		Quantity:       quantity,
		Price:          price,
		ReferencePrice: reference,
		Time:           at,
		BarIndex:       bar,
		Commission:     commission,
		Slippage:       math.Abs(price-reference) * quantity,
		Reason:         order.Reason,
	}

	p.apply(fill)
	p.fills = append(p.fills, fill)

	return fill, nil
}

// apply books a fill against cash and the position. Reducing fills realise
// PnL with decimal arithmetic and close a trade for the reduced quantity.
func (p *Portfolio) apply(fill types.Fill) {
	signed := fill.SignedQuantity()
	price := decimal.NewFromFloat(fill.Price)

	p.cash = p.cash.
		Sub(decimal.NewFromFloat(signed).Mul(price)).
		Sub(decimal.NewFromFloat(fill.Commission))

	held := p.position.Quantity

	if math.Abs(held) <= quantityEpsilon || sameSign(held, signed) {
		p.open(fill, signed)

		return
	}

	closed := math.Min(math.Abs(signed), math.Abs(held))
	fillShare := closed / math.Abs(signed)
	openShare := closed / math.Abs(held)

	exitCommission := fill.Commission * fillShare
	exitSlippage := fill.Slippage * fillShare
	entryCommission := p.openCommission * openShare
	entrySlippage := p.openSlippage * openShare

	direction := decimal.NewFromFloat(math.Copysign(1, held))
	gross := price.Sub(decimal.NewFromFloat(p.position.EntryPrice)).
		Mul(decimal.NewFromFloat(closed)).
		Mul(direction)
	pnl := gross.
		Sub(decimal.NewFromFloat(entryCommission)).
		Sub(decimal.NewFromFloat(exitCommission)).
		InexactFloat64()

	returnPct := 0.0
	if p.openEquity > 0 {
		returnPct = pnl / p.openEquity
	}

	p.trades = append(p.trades, types.Trade{
		Symbol:      p.symbol,
		Direction:   p.position.Direction(),
		EntryTime:   p.position.EntryTime,
		ExitTime:    fill.Time,
		EntryBar:    p.position.EntryBar,
		ExitBar:     fill.BarIndex,
		EntryPrice:  p.position.EntryPrice,
		ExitPrice:   fill.Price,
		Quantity:    closed,
		PnL:         pnl,
		ReturnPct:   returnPct,
		Commission:  entryCommission + exitCommission,
		Slippage:    entrySlippage + exitSlippage,
		HoldingBars: fill.BarIndex - p.position.EntryBar,
	})

	p.openCommission -= entryCommission
	p.openSlippage -= entrySlippage

	remaining := held + signed

	switch {
	case math.Abs(remaining) <= quantityEpsilon:
		p.position = types.Position{Symbol: p.symbol, MarketPrice: p.position.MarketPrice}
		p.openCommission, p.openSlippage = 0, 0
	case sameSign(remaining, held):
		p.position.Quantity = remaining
	default:
		// reversal: the rest of the fill opens a new position
		p.position = types.Position{Symbol: p.symbol, MarketPrice: p.position.MarketPrice}
		p.openCommission = fill.Commission - exitCommission
		p.openSlippage = fill.Slippage - exitSlippage
		p.openEquity = p.equity
		p.position.Quantity = remaining
		p.position.EntryPrice = fill.Price
		p.position.EntryTime = fill.Time
		p.position.EntryBar = fill.BarIndex
	}
}

func (p *Portfolio) open(fill types.Fill, signed float64) {
	held := p.position.Quantity

	if math.Abs(held) <= quantityEpsilon {
		p.position.EntryTime = fill.Time
		p.position.EntryBar = fill.BarIndex
		p.position.EntryPrice = fill.Price
		p.position.Quantity = signed
		p.openEquity = p.equity
	} else {
		total := decimal.NewFromFloat(math.Abs(held)).Mul(decimal.NewFromFloat(p.position.EntryPrice)).
			Add(decimal.NewFromFloat(math.Abs(signed)).Mul(decimal.NewFromFloat(fill.Price)))
		p.position.Quantity = held + signed
		p.position.EntryPrice = total.Div(decimal.NewFromFloat(math.Abs(p.position.Quantity))).InexactFloat64()
	}

	p.openCommission += fill.Commission
	p.openSlippage += fill.Slippage
}

// State returns the read-only snapshot handed to strategies and the risk manager.
func (p *Portfolio) State(bar int, at time.Time, halted bool) types.PortfolioState {
	state := types.PortfolioState{
		Time:          at,
		BarIndex:      bar,
		Cash:          p.Cash(),
		Equity:        p.equity,
		PeakEquity:    p.peak,
		Position:      p.position,
		PendingOrders: len(p.Pending()),
		Halted:        halted,
	}

	if p.peak > 0 {
		state.Drawdown = math.Min(p.equity/p.peak-1, 0)
	}

	state.Exposure = p.Exposure()

	return state
}

// Exposure returns the position's market value as a fraction of equity.
func (p *Portfolio) Exposure() float64 {
	if p.equity <= 0 {
		return 0
	}

	return p.position.MarketValue() / p.equity
}

// Fills returns the fills in execution order.
func (p *Portfolio) Fills() []types.Fill {
	return append(make([]types.Fill, 0, len(p.fills)), p.fills...)
}

// Trades returns the closed trades in exit order.
func (p *Portfolio) Trades() []types.Trade {
	return append(make([]types.Trade, 0, len(p.trades)), p.trades...)
}

// OpenPosition returns the held position, or nil when flat.
func (p *Portfolio) OpenPosition() *types.Position {
	if math.Abs(p.position.Quantity) <= quantityEpsilon {
		return nil
	}

	position := p.position

	return &position
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
