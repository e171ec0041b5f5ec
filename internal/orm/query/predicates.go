package query

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpIs
	OpIsNot
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpIs:
		return "IS"
	case OpIsNot:
		return "IS NOT"
	default:
		return "UNKNOWN"
	}
}

// operatorNames maps the short operator names accepted by Not
var operatorNames = map[string]Operator{
	"eq":  OpEqual,
	"neq": OpNotEqual,
	"gt":  OpGreaterThan,
	"gte": OpGreaterThanOrEqual,
	"lt":  OpLessThan,
	"lte": OpLessThanOrEqual,
	"in":  OpIn,
	"is":  OpIs,
}

// negate returns the operator matching exactly the rows op rejects, ignoring NULLs
func (o Operator) negate() (Operator, bool) {
	switch o {
	case OpEqual:
		return OpNotEqual, true
	case OpNotEqual:
		return OpEqual, true
	case OpGreaterThan:
		return OpLessThanOrEqual, true
	case OpGreaterThanOrEqual:
		return OpLessThan, true
	case OpLessThan:
		return OpGreaterThanOrEqual, true
	case OpLessThanOrEqual:
		return OpGreaterThan, true
	case OpIs:
		return OpIsNot, true
	case OpIsNot:
		return OpIs, true
	default:
		return o, false
	}
}

// Condition represents a WHERE condition. Conditions are always AND-joined.
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// conditionToSQL converts a condition to SQL with parameterized values
func conditionToSQL(cond *Condition, dialect Dialect, paramCounter *int, args *[]interface{}) (string, error) {
	field, err := quoteIdent(cond.Field)
	if err != nil {
		return "", err
	}

	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		*args = append(*args, cond.Value)
		sql := fmt.Sprintf("%s %s %s", field, cond.Operator.String(), dialect.Placeholder(*paramCounter))
		*paramCounter++
		return sql, nil

	case OpIn:
		values, ok := cond.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("IN operator requires []interface{} value")
		}
		if len(values) == 0 {
			// IN with empty list always returns false
			return "1 = 0", nil
		}

		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = dialect.Placeholder(*paramCounter)
			*paramCounter++
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")), nil

	case OpIs, OpIsNot:
		keyword, err := isOperand(cond.Value)
		if err != nil {
			return "", fmt.Errorf("%s on %s: %w", cond.Operator.String(), cond.Field, err)
		}
		return fmt.Sprintf("%s %s %s", field, cond.Operator.String(), keyword), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}

// isOperand renders the right-hand side of IS: NULL, TRUE or FALSE
func isOperand(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	default:
		return "", fmt.Errorf("IS requires nil or a bool, got %T", value)
	}
}
