package entity

//go:generate stringer -type=Action

// Action represents the direction of a trade.
type Action int

const (
	// ActionNull represents no action or an undefined action
	ActionNull Action = iota
	// ActionBuy purchases metal grams against the cash balance
	ActionBuy
	// ActionSell liquidates owned metal grams into pending cash
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "null"
	}
}
