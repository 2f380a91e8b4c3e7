package domain

// Action represents the type of trading action decided for a ticker.
type Action int

const (
	ActionHold Action = iota
	ActionBuy
	ActionSell
	ActionSellPartial
)

// action string constants to avoid magic strings
const (
	actionStringHold        = "hold"
	actionStringBuy         = "buy"
	actionStringSell        = "sell"
	actionStringSellPartial = "sell_partial"
)

// isValidActionString checks if the string is a valid action
func isValidActionString(s string) bool {
	switch s {
	case actionStringHold, actionStringBuy,
		actionStringSell, actionStringSellPartial:
		return true
	}
	return false
}

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	case ActionSellPartial:
		return actionStringSellPartial
	default:
		return "unknown"
	}
}

// IsExit reports whether the action closes part or all of a position.
func (a Action) IsExit() bool {
	return a == ActionSell || a == ActionSellPartial
}

// IsEntry reports whether the action opens or adds to a position.
func (a Action) IsEntry() bool {
	return a == ActionBuy
}
