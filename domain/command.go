package domain

// Commands crossing the gateway boundary. Field presence is enforced with
// validator tags before any directory or log mutation: a command that fails
// validation never touches state.

type RegisterCommand struct {
	Handle string `validate:"required"`
	Secret string `validate:"required"`
}

type LoginCommand struct {
	Handle string `validate:"required"`
	Secret string `validate:"required"`
}

type SendDirectedCommand struct {
	From string `validate:"required"`
	To   string `validate:"required"`
	Body string `validate:"required"`
}

// SendBroadcastCommand carries no recipient and its sender label is not
// required to be a registered handle.
type SendBroadcastCommand struct {
	From string `validate:"required"`
	Body string `validate:"required"`
}

type HistoryCommand struct {
	HandleA string `validate:"required"`
	HandleB string `validate:"required"`
}
