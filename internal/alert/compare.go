package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vesseleye/internal/models"
)

var ErrUnknownOperator = errors.New("unknown operator")

// Compare applies op to value and threshold. NaN compares false under
// every operator.
func Compare(value, threshold float64, op models.Operator) (bool, error) {
	switch op {
	case models.OperatorGT:
		return value > threshold, nil
	case models.OperatorGTE:
		return value >= threshold, nil
	case models.OperatorLT:
		return value < threshold, nil
	case models.OperatorLTE:
		return value <= threshold, nil
	case models.OperatorEQ:
		return value == threshold, nil
	case models.OperatorAbsGTE:
		return math.Abs(value) >= threshold, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// ToFloat coerces a field-bag value to float64. Numeric strings are parsed;
// anything else, including booleans and nil, becomes NaN.
func ToFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func formatValue(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}
