package stream

import "encoding/json"

// EventType names a server-pushed notification kind.
type EventType string

const (
	// EventCardsSelected carries the id of an opponent who committed a card
	// choice for the current turn.
	EventCardsSelected EventType = "cardsselected"
	// EventCountdownStarted carries the resolution countdown duration in
	// milliseconds.
	EventCountdownStarted EventType = "countdownstarted"
	// EventCountdownCancelled carries no payload; an in-flight countdown is
	// no longer valid.
	EventCountdownCancelled EventType = "countdowncancelled"
	// EventTurnOver carries no payload; local state is now stale.
	EventTurnOver EventType = "turnover"
	// EventRoundOver carries a round summary.
	EventRoundOver EventType = "roundover"
	// EventGameOver carries the winning player's name.
	EventGameOver EventType = "gameover"
)

// Event is the wire envelope for one pushed notification. Payloads stay raw:
// the stream layer demultiplexes, it does not interpret.
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Handler receives the raw payload of one event.
type Handler func(data json.RawMessage)
