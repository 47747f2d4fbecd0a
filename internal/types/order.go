package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type PurchaseType string

type OrderType string

type OrderStatus string

type PositionType string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

const (
	PositionTypeLong  PositionType = "LONG"
	PositionTypeShort PositionType = "SHORT"
)

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStop       OrderType = "STOP"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

const (
	OrderReasonStopLoss       string = "stop_loss"
	OrderReasonTakeProfit     string = "take_profit"
	OrderReasonStrategy       string = "strategy"
	OrderReasonRiskRejected   string = "risk_rejected"
	OrderReasonVolumeCap      string = "volume_cap"
	OrderReasonInvalidSize    string = "invalid_quantity"
	OrderReasonEndOfData      string = "end_of_data"
	OrderReasonDrawdownHalted string = "drawdown_halted"
)

// Sign returns +1 for buys and -1 for sells.
func (p PurchaseType) Sign() float64 {
	if p == PurchaseTypeSell {
		return -1
	}

	return 1
}

// Opposite returns the other side.
func (p PurchaseType) Opposite() PurchaseType {
	if p == PurchaseTypeBuy {
		return PurchaseTypeSell
	}

	return PurchaseTypeBuy
}

// Order is an intent to change a position that the portfolio has accepted.
// Orders are owned by the portfolio that created them and referenced by ID.
type Order struct {
	ID             string       `yaml:"id" json:"id" validate:"required"`
	Symbol         string       `yaml:"symbol" json:"symbol" validate:"required"`
	Type           OrderType    `yaml:"type" json:"type" validate:"required,oneof=MARKET LIMIT STOP TAKE_PROFIT"`
	Side           PurchaseType `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity       float64      `yaml:"quantity" json:"quantity" validate:"gt=0"`
	FilledQuantity float64      `yaml:"filled_quantity" json:"filled_quantity" validate:"gte=0,ltefield=Quantity"`
	// LimitPrice is required for LIMIT and TAKE_PROFIT orders.
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	// StopPrice is required for STOP orders.
	StopPrice  optional.Option[float64] `yaml:"stop_price" json:"stop_price"`
	CreatedAt  time.Time                `yaml:"created_at" json:"created_at" validate:"required"`
	CreatedBar int                      `yaml:"created_bar" json:"created_bar" validate:"gte=0"`
	Status     OrderStatus              `yaml:"status" json:"status" validate:"required,oneof=PENDING FILLED PARTIALLY_FILLED CANCELLED REJECTED"`
	// Reason is a short machine readable tag such as "strategy" or "stop_loss".
	Reason string `yaml:"reason" json:"reason"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	switch o.Type {
	case OrderTypeLimit, OrderTypeTakeProfit:
		if o.LimitPrice.IsNone() || o.LimitPrice.Unwrap() <= 0 {
			return errors.Newf(errors.ErrCodeInvalidOrder, "%s order requires a positive limit price", o.Type)
		}
	case OrderTypeStop:
		if o.StopPrice.IsNone() || o.StopPrice.Unwrap() <= 0 {
			return errors.New(errors.ErrCodeInvalidOrder, "STOP order requires a positive stop price")
		}
	}

	return nil
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// IsOpen reports whether the order can still fill.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusPending
}

// OrderIntent is what a strategy asks for. The engine turns it into an Order
// after sizing and risk validation.
type OrderIntent struct {
	Type OrderType    `yaml:"type" json:"type" validate:"required,oneof=MARKET LIMIT STOP TAKE_PROFIT"`
	Side PurchaseType `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	// Quantity in units. None lets the risk manager size the order.
	Quantity   optional.Option[float64] `yaml:"quantity" json:"quantity"`
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	StopPrice  optional.Option[float64] `yaml:"stop_price" json:"stop_price"`
	// StopDistance is the price distance to the protective stop, used by fixed-risk sizing.
	StopDistance float64 `yaml:"stop_distance" json:"stop_distance" validate:"gte=0"`
	Reason       string  `yaml:"reason" json:"reason"`
}

// Validate validates the OrderIntent struct.
func (oi *OrderIntent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(oi); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order intent", err)
	}

	if oi.Quantity.IsSome() && oi.Quantity.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "order intent quantity must be positive")
	}

	return nil
}

// Fill is a realised execution. Fills are immutable once recorded.
type Fill struct {
	ID       string       `yaml:"id" json:"id"`
	OrderID  string       `yaml:"order_id" json:"order_id"`
	Symbol   string       `yaml:"symbol" json:"symbol"`
	Side     PurchaseType `yaml:"side" json:"side"`
	Type     OrderType    `yaml:"type" json:"type"`
	Quantity float64      `yaml:"quantity" json:"quantity"`
	// Price is the execution price including slippage.
	Price float64 `yaml:"price" json:"price"`
	// ReferencePrice is the price before slippage (close, trigger or limit).
	ReferencePrice float64   `yaml:"reference_price" json:"reference_price"`
	Time           time.Time `yaml:"time" json:"time"`
	BarIndex       int       `yaml:"bar_index" json:"bar_index"`
	// Commission is the transaction fee in currency.
	Commission float64 `yaml:"commission" json:"commission"`
	// Slippage is |Price-ReferencePrice| × Quantity in currency.
	Slippage float64 `yaml:"slippage" json:"slippage"`
	Reason   string  `yaml:"reason" json:"reason"`
}

// SignedQuantity returns the quantity with the side's sign.
func (f Fill) SignedQuantity() float64 {
	return f.Side.Sign() * f.Quantity
}
