package apperrors

import (
	"errors"
	"fmt"

	"backtest_accounts/internal/core"
)

// Standardized accounting errors. These mark caller or data misuse and must
// propagate rather than being swallowed.
var (
	ErrShortStockPosition   = errors.New("stock position is not supposed to be short")
	ErrUnsupportedEffect    = errors.New("unsupported position effect")
	ErrInvalidDividend      = errors.New("invalid dividend per share")
	ErrUnknownInstrument    = errors.New("unknown instrument")
	ErrSnapshotCorrupted    = errors.New("snapshot corrupted")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// PositionError wraps a fatal position-level failure with the instrument id
// and, when relevant, the offending position effect.
type PositionError struct {
	OrderBookID string
	Effect      core.PositionEffect
	Err         error
}

func (e *PositionError) Error() string {
	if e.Effect != "" {
		return fmt.Sprintf("position %s: %v (effect %s)", e.OrderBookID, e.Err, e.Effect)
	}
	return fmt.Sprintf("position %s: %v", e.OrderBookID, e.Err)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// NewPositionError builds a PositionError without an effect.
func NewPositionError(orderBookID string, err error) *PositionError {
	return &PositionError{OrderBookID: orderBookID, Err: err}
}

// NewEffectError builds a PositionError for an unsupported position effect.
func NewEffectError(orderBookID string, effect core.PositionEffect) *PositionError {
	return &PositionError{OrderBookID: orderBookID, Effect: effect, Err: ErrUnsupportedEffect}
}
