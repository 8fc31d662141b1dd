package flow

// Operator compares the two sides of a Condition.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
	OpScript      Operator = "script"
)

// Chain links a condition to the one after it.
type Chain string

const (
	ChainAnd Chain = "and"
	ChainOr  Chain = "or"
)

// Condition is one comparison in an ordered condition list. Chain describes
// the relation to the next item; the empty chain means "and".
//
// In DB contexts LHS names a column and RHS is the value it is compared with.
type Condition struct {
	LHS      any      `json:"lhs"`
	RHS      any      `json:"rhs,omitempty"`
	Operator Operator `json:"operator"`
	Chain    Chain    `json:"chain,omitempty"`
}
