// Package eventdriven implements the bar-by-bar backtester: the strategy sees
// one bar at a time, orders rest and fill against later bars, and a portfolio
// tracks cash, position, fills and trades.
package eventdriven

import (
	"context"
	"math"
	"strconv"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/cost"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/risk"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// Backtester is the event-driven backtester.
type Backtester struct {
	config  engine.Config
	options engine.Options
}

// NewBacktester creates an event-driven backtester. The configuration is
// validated when a run starts.
func NewBacktester(config engine.Config, opts ...engine.Option) *Backtester {
	return &Backtester{
		config:  config,
		options: engine.NewOptions(config, opts...),
	}
}

// Mode implements engine.Backtester.
func (b *Backtester) Mode() types.Mode {
	return types.ModeEventDriven
}

// Run implements engine.Backtester.
func (b *Backtester) Run(ctx context.Context, in engine.Inputs) (*types.BacktestResult, error) {
	run, err := engine.Prepare(ctx, b.config, in)
	if err != nil {
		return nil, err
	}

	observer := b.options.Observer
	observer.Observe(run.Event(log.EventRunStart, -1, "event-driven run started"))

	models, err := cost.New(b.config.Costs)
	if err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	atr, err := cost.ATRSeries(models.Slippage, run.Bars)
	if err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	sim := newSimulation(b.config, b.options, run, models, atr)

	result, err := sim.simulate()
	if err != nil {
		return nil, run.Fail(observer, sim.bar, err)
	}

	if err := engine.Finalize(result); err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	end := run.Event(log.EventRunEnd, -1, "event-driven run finished")
	end.Fields = map[string]string{
		"trades": strconv.Itoa(len(result.Trades)),
		"fills":  strconv.Itoa(len(result.Fills)),
	}
	observer.Observe(end)

	return result, nil
}

// simulation is the mutable state of one run.
type simulation struct {
	config    engine.Config
	options   engine.Options
	run       *engine.Run
	models    *cost.Models
	atr       []float64
	history   []types.Bar
	portfolio *Portfolio
	orders    strategy.OrderStrategy

	// bar is the index being simulated
	bar        int
	prevEquity float64
	lastSignal optional.Option[float64]
	halted     bool
	haltedBars int
	skipped    []int

	equity    []float64
	returns   []float64
	positions []float64
	costs     types.CostBreakdown
}

func newSimulation(config engine.Config, options engine.Options, run *engine.Run, models *cost.Models, atr []float64) *simulation {
	n := len(run.Bars)

	s := &simulation{
		config:     config,
		options:    options,
		run:        run,
		models:     models,
		atr:        atr,
		history:    strategy.Join(run.Warmup, run.Bars),
		portfolio:  NewPortfolio(run.Symbol, config.InitialCapital),
		bar:        -1,
		prevEquity: config.InitialCapital,
		lastSignal: optional.None[float64](),
		equity:     make([]float64, n),
		returns:    make([]float64, n),
		positions:  make([]float64, n),
		costs:      types.NewCostBreakdown(n),
	}

	if run.Signals == nil {
		if o, ok := run.Strategy.(strategy.OrderStrategy); ok {
			s.orders = o
		}
	}

	return s
}

func (s *simulation) simulate() (*types.BacktestResult, error) {
	bars := s.run.Bars
	n := len(bars)

	for t := range bars {
		s.bar = t
		bar := bars[t]

		s.portfolio.MarkToMarket(bar.Close)
		s.carry(t)

		if err := s.processPending(t); err != nil {
			return nil, err
		}

		s.portfolio.MarkToMarket(bar.Close)

		if s.options.HaltPolicy.Halted(s.portfolio.State(t, bar.Time, s.halted)) {
			s.halt(t)
		} else {
			s.halted = false

			if err := s.decide(t); err != nil {
				return nil, err
			}
		}

		equity := s.portfolio.MarkToMarket(bar.Close)
		s.equity[t] = equity
		s.positions[t] = s.portfolio.Exposure()

		if s.prevEquity > 0 {
			s.returns[t] = equity/s.prevEquity - 1
		}

		s.prevEquity = equity

		if err := s.options.Progress(t+1, n); err != nil {
			return nil, err
		}
	}

	s.portfolio.CancelAll(types.OrderReasonEndOfData)

	result := &types.BacktestResult{
		Times:     s.run.Times(),
		Equity:    s.equity,
		Returns:   s.returns,
		Positions: s.positions,
		Trades:    s.portfolio.Trades(),
		Fills:     s.portfolio.Fills(),
		Costs:     s.costs,
		Metadata:  s.run.Metadata(s.config, types.ModeEventDriven),
	}

	result.Metadata.SkippedBars = s.skipped
	result.Metadata.HaltedBars = s.haltedBars
	result.Metadata.OpenPosition = s.portfolio.OpenPosition()

	return result, nil
}

// carry charges funding and borrow on the position held over bar t, valued
// at the previous close.
func (s *simulation) carry(t int) {
	if t == 0 {
		return
	}

	quantity := s.portfolio.Position().Quantity
	if quantity == 0 {
		return
	}

	prev := s.run.Bars[t-1]
	notional := quantity * prev.Close
	costs := s.config.Costs

	settlements := cost.Settlements(prev.Time, s.run.Bars[t].Time, costs.FundingInterval)
	funding := cost.Funding(notional, costs.FundingRate, settlements)
	borrow := cost.Borrow(notional, costs.BorrowRate, s.config.PeriodsPerYear)

	s.portfolio.Charge(funding + borrow)
	s.costs.Funding[t] += s.fraction(funding)
	s.costs.Borrow[t] += s.fraction(borrow)
}

// processPending evaluates resting orders placed on earlier bars against the
// range of bar t.
func (s *simulation) processPending(t int) error {
	bar := s.run.Bars[t]

	for _, id := range s.portfolio.Pending() {
		order, _ := s.portfolio.Order(id)
		if order.CreatedBar >= t {
			continue
		}

		quantity := order.Remaining()

		if IsReduceOnly(order) {
			held := s.portfolio.Position().Quantity
			if held == 0 || sameSign(held, order.Side.Sign()) {
				s.portfolio.Cancel(id, "position closed")

				continue
			}

			quantity = math.Min(quantity, math.Abs(held))
		}

		reference, ok := Trigger(order, bar)
		if !ok {
			continue
		}

		if err := s.execute(t, id, quantity, reference); err != nil {
			if !errors.IsContinuable(err) {
				return err
			}

			s.skip(t, err)
		}
	}

	return nil
}

// halt records a bar on which the halt policy suppressed decisions.
func (s *simulation) halt(t int) {
	s.haltedBars++

	if s.halted {
		return
	}

	s.halted = true
	state := s.portfolio.State(t, s.run.Bars[t].Time, true)

	event := s.run.Event(log.EventHalted, t, "drawdown halt engaged, no new positions")
	event.Fields = map[string]string{
		"drawdown": strconv.FormatFloat(state.Drawdown, 'f', 6, 64),
	}
	s.options.Observer.Observe(event)
}

// decide asks the strategy what to do after bar t closed and submits the result.
func (s *simulation) decide(t int) error {
	state := s.portfolio.State(t, s.run.Bars[t].Time, false)
	history := strategy.NewHistory(s.history, len(s.run.Warmup)+t)

	if s.orders != nil {
		intents, err := strategy.Orders(s.orders, history, state)
		if err != nil {
			return err
		}

		for _, intent := range intents {
			if _, err := s.submit(t, intent, state); err != nil {
				if !errors.IsContinuable(err) {
					return err
				}

				s.skip(t, err)
			}
		}

		return nil
	}

	var sig types.Signal

	if s.run.Signals != nil {
		sig = s.run.Signals[t]
	} else {
		var err error

		sig, err = strategy.Signal(s.run.Strategy, history)
		if err != nil {
			return err
		}

		if !types.IsValidSignal(sig, s.config.ContinuousSignals) {
			return errors.Newf(errors.ErrCodeStrategyFailed, "strategy %s returned invalid signal %v at bar %d", s.run.StrategyName(), sig, t)
		}
	}

	if types.IsNoSignal(sig) || (s.lastSignal.IsSome() && s.lastSignal.Unwrap() == sig) {
		return nil
	}

	intents, err := s.targetIntents(sig, state)
	if err != nil {
		if !errors.IsContinuable(err) {
			return err
		}

		s.skip(t, err)

		return nil
	}

	// the signal is consumed only once every order it needs was placed, so a
	// rejected or skipped entry is retried on the next bar
	placed := 0

	for _, intent := range intents {
		ok, err := s.submit(t, intent, state)
		if err != nil {
			if !errors.IsContinuable(err) {
				return err
			}

			s.skip(t, err)
		}

		if ok {
			placed++
		}

		state = s.portfolio.State(t, s.run.Bars[t].Time, false)
	}

	if placed == len(intents) {
		s.lastSignal = optional.Some(sig)
	}

	return nil
}

// targetIntents turns a target exposure into market orders: one closing the
// part of the position the target no longer holds, one opening the rest.
func (s *simulation) targetIntents(sig types.Signal, state types.PortfolioState) ([]types.OrderIntent, error) {
	held := state.Position.Quantity
	target := 0.0

	if sig != 0 {
		size, err := s.options.RiskManager.CalculateSize(risk.SizeRequest{
			Capital: state.Equity,
			RiskPct: s.config.RiskPerTrade * math.Abs(sig),
			Price:   s.run.Bars[state.BarIndex].Close,
			Method:  s.config.SizingMethod,
		})
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeSizingFailed, err, "sizing target exposure %v", sig)
		}

		target = math.Copysign(size, sig)
	}

	intents := make([]types.OrderIntent, 0, 2)

	// close whatever the target does not keep
	if held != 0 && !sameSign(held, target) {
		intents = append(intents, marketIntent(-held))
		held = 0
	}

	if delta := target - held; math.Abs(delta) > quantityEpsilon {
		intents = append(intents, marketIntent(delta))
	}

	return intents, nil
}

func marketIntent(delta float64) types.OrderIntent {
	side := types.PurchaseTypeBuy
	if delta < 0 {
		side = types.PurchaseTypeSell
	}

	return types.OrderIntent{
		Type:     types.OrderTypeMarket,
		Side:     side,
		Quantity: optional.Some(math.Abs(delta)),
		Reason:   types.OrderReasonStrategy,
	}
}

// submit sizes, validates and places one intent. Market orders execute at
// the close of bar t; everything else rests until a later bar. It reports
// whether the order was placed.
func (s *simulation) submit(t int, intent types.OrderIntent, state types.PortfolioState) (bool, error) {
	bar := s.run.Bars[t]

	if err := intent.Validate(); err != nil {
		s.reject(t, intent, err.Error())

		return false, nil
	}

	quantity := 0.0

	if intent.Quantity.IsSome() {
		quantity = intent.Quantity.Unwrap()
	} else {
		size, err := s.options.RiskManager.CalculateSize(risk.SizeRequest{
			Capital:      state.Equity,
			RiskPct:      s.config.RiskPerTrade,
			StopDistance: intent.StopDistance,
			Price:        bar.Close,
			Method:       s.config.SizingMethod,
		})
		if err != nil {
			return false, errors.Wrapf(errors.ErrCodeSizingFailed, err, "sizing %s %s order", intent.Side, intent.Type)
		}

		quantity = size
	}

	held := state.Position.Quantity
	reference := referencePrice(intent, bar)
	reason := intent.Reason

	if reason == "" {
		reason = types.OrderReasonStrategy
	}

	closing := held != 0 && !sameSign(held, intent.Side.Sign()) && quantity <= math.Abs(held)+quantityEpsilon
	if intent.Type == types.OrderTypeTakeProfit || (intent.Type == types.OrderTypeStop && reason == types.OrderReasonStopLoss) {
		closing = true
	}

	verdict := s.options.RiskManager.ValidateTrade(risk.ProposedTrade{
		Symbol:   s.run.Symbol,
		Side:     intent.Side,
		Quantity: quantity,
		Price:    reference,
		Closing:  closing,
	}, state)
	if !verdict.Accepted {
		s.reject(t, intent, verdict.Reason)

		return false, nil
	}

	id, err := s.portfolio.Submit(types.Order{
		Symbol:     s.run.Symbol,
		Type:       intent.Type,
		Side:       intent.Side,
		Quantity:   quantity,
		LimitPrice: intent.LimitPrice,
		StopPrice:  intent.StopPrice,
		CreatedAt:  bar.Time,
		CreatedBar: t,
		Reason:     reason,
	})
	if err != nil {
		s.reject(t, intent, err.Error())

		return false, nil
	}

	if intent.Type != types.OrderTypeMarket {
		return true, nil
	}

	if err := s.execute(t, id, quantity, bar.Close); err != nil {
		s.portfolio.Cancel(id, err.Error())

		return false, err
	}

	return true, nil
}

func referencePrice(intent types.OrderIntent, bar types.Bar) float64 {
	switch {
	case intent.Type == types.OrderTypeStop && intent.StopPrice.IsSome():
		return intent.StopPrice.Unwrap()
	case intent.Type != types.OrderTypeMarket && intent.LimitPrice.IsSome():
		return intent.LimitPrice.Unwrap()
	default:
		return bar.Close
	}
}

// execute fills up to quantity of order id at reference adjusted for
// slippage. Quantity above the volume cap is cancelled.
func (s *simulation) execute(t int, id string, quantity float64, reference float64) error {
	bar := s.run.Bars[t]
	order, _ := s.portfolio.Order(id)

	filled := CapQuantity(quantity, bar.Volume, s.config.MaxVolumeFraction)
	if filled <= quantityEpsilon {
		s.portfolio.Cancel(id, types.OrderReasonVolumeCap)
		s.options.Logger.Debug("order cancelled by volume cap",
			zap.String("run_id", s.run.ID), zap.Int("bar", t), zap.String("order_id", id))

		return nil
	}

	rate := 0.0

	if Slips(order.Type) {
		var err error

		rate, err = s.models.Slippage.Rate(cost.ContextAt(s.run.Bars, s.atr, t, filled, reference))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeCostModelFailed, err, "slippage at bar %d", t)
		}
	}

	price := ExecutionPrice(reference, order.Side, rate)
	commission := s.models.Fee.Calculate(filled, price)

	fill, err := s.portfolio.Fill(id, filled, price, reference, commission, bar.Time, t)
	if err != nil {
		return err
	}

	if filled < quantity-quantityEpsilon {
		s.portfolio.Cancel(id, types.OrderReasonVolumeCap)
		s.options.Logger.Debug("order partially filled",
			zap.String("run_id", s.run.ID), zap.Int("bar", t), zap.String("order_id", id),
			zap.Float64("requested", quantity), zap.Float64("filled", filled))
	}

	s.costs.Transaction[t] += s.fraction(fill.Commission)
	s.costs.Slippage[t] += s.fraction(fill.Slippage)

	return nil
}

// fraction expresses a currency amount as a fraction of the previous bar's equity.
func (s *simulation) fraction(amount float64) float64 {
	if s.prevEquity <= 0 {
		return 0
	}

	return amount / s.prevEquity
}

func (s *simulation) reject(t int, intent types.OrderIntent, reason string) {
	event := s.run.Event(log.EventOrderRejected, t, reason)
	event.Fields = map[string]string{
		"side": string(intent.Side),
		"type": string(intent.Type),
	}
	s.options.Observer.Observe(event)
}

func (s *simulation) skip(t int, err error) {
	if len(s.skipped) == 0 || s.skipped[len(s.skipped)-1] != t {
		s.skipped = append(s.skipped, t)
	}

	s.options.Logger.Warn("bar skipped", zap.String("run_id", s.run.ID), zap.Int("bar", t), zap.Error(err))

	event := s.run.Event(log.EventBarSkipped, t, "no trade this bar")
	event.Err = err
	s.options.Observer.Observe(event)
}
