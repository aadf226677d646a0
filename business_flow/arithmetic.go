package businessflow

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext carries enough precision that products of float-sized inputs stay exact.
var decimalContext = apd.BaseContext.WithPrecision(34)

// resultScale matches result_kg_co2e NUMERIC(18,6), so a computed result equals its stored value.
const resultScale = -6

func toDecimal(v float64) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	if err != nil {
		return nil, fmt.Errorf("failed to convert %v to decimal: %w", v, err)
	}
	return d, nil
}

// emissions computes quantity*factor in decimal, divided by occupancy when occupancy > 0,
// and rounds half-up to six decimal places.
func emissions(quantity, factor float64, occupancy int) (float64, error) {
	q, err := toDecimal(quantity)
	if err != nil {
		return 0, err
	}
	f, err := toDecimal(factor)
	if err != nil {
		return 0, err
	}

	var out apd.Decimal
	if _, err := decimalContext.Mul(&out, q, f); err != nil {
		return 0, fmt.Errorf("failed to multiply: %w", err)
	}

	if occupancy > 0 {
		if _, err := decimalContext.Quo(&out, &out, apd.New(int64(occupancy), 0)); err != nil {
			return 0, fmt.Errorf("failed to divide by occupancy: %w", err)
		}
	}

	if _, err := decimalContext.Quantize(&out, &out, resultScale); err != nil {
		return 0, fmt.Errorf("failed to round result: %w", err)
	}

	result, err := out.Float64()
	if err != nil {
		return 0, fmt.Errorf("failed to convert result: %w", err)
	}
	return result, nil
}
