package domain

// Action represents what the engine would do with a signal.
type Action int

const (
	ActionNone Action = iota
	ActionBuyUp
	ActionBuyDown
)

const (
	actionStringNone    = "none"
	actionStringBuyUp   = "buy_up"
	actionStringBuyDown = "buy_down"
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionBuyUp:
		return actionStringBuyUp
	case ActionBuyDown:
		return actionStringBuyDown
	default:
		return actionStringNone
	}
}

// Side returns the outcome token side bought by the action.
func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuyUp:
		return SideUp, true
	case ActionBuyDown:
		return SideDown, true
	}
	return "", false
}
