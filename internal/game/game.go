// Package game holds the value types for a locally held game snapshot and the
// immutable update helpers the reconciler applies to it. Nothing here talks to
// the network; these are the wire shapes the server sends, plus copy-on-write
// mutations so a published snapshot is never edited in place.
package game

import (
	"github.com/google/uuid"
)

// PlayerView is the local user's side of the snapshot. Hidden information
// (the hand, the current selection) is only ever present for the local user.
type PlayerView struct {
	FaceUpCards   []FaceUpCard `json:"faceUpCards"`
	Hand          Hand         `json:"hand"`
	NumPoints     int          `json:"numPoints"`
	NumPuddings   int          `json:"numPuddings"`
	SelectedCards []int        `json:"selectedCards"`
}

// OpponentView is what the server reveals about another player: played cards,
// score, and whether they have committed a choice this turn. No hand.
type OpponentView struct {
	FaceUpCards []FaceUpCard `json:"faceUpCards"`
	ID          string       `json:"id"`
	NumCards    int          `json:"numCards"`
	NumPoints   int          `json:"numPoints"`
	NumPuddings int          `json:"numPuddings"`
	Ready       bool         `json:"ready"`
}

// Game is one full snapshot of locally known game state. Winner is nil until
// the game reaches its terminal state and is never cleared once set.
type Game struct {
	ID        uuid.UUID      `json:"id"`
	Round     int            `json:"round"`
	Player    PlayerView     `json:"player"`
	Opponents []OpponentView `json:"opponents"`
	Winner    *string        `json:"winner,omitempty"`
}

// RoundSummary is the roundover event payload: the round that just ended and
// the points scored in it per player id.
type RoundSummary struct {
	Round  int            `json:"round"`
	Points map[string]int `json:"points"`
}

// GameSummary is one entry of the game list.
type GameSummary struct {
	ID      uuid.UUID `json:"id"`
	Players []string  `json:"players"`
}

// Clone returns a deep copy of the snapshot. Slices and maps are copied so
// the result shares no mutable state with the receiver.
func (g Game) Clone() Game {
	out := g
	out.Player = g.Player.clone()
	if g.Opponents != nil {
		out.Opponents = make([]OpponentView, len(g.Opponents))
		for i, o := range g.Opponents {
			out.Opponents[i] = o
			out.Opponents[i].FaceUpCards = append([]FaceUpCard(nil), o.FaceUpCards...)
		}
	}
	if g.Winner != nil {
		w := *g.Winner
		out.Winner = &w
	}
	return out
}

func (p PlayerView) clone() PlayerView {
	out := p
	out.FaceUpCards = append([]FaceUpCard(nil), p.FaceUpCards...)
	out.SelectedCards = append([]int(nil), p.SelectedCards...)
	if p.Hand != nil {
		out.Hand = make(Hand, len(p.Hand))
		for id, c := range p.Hand {
			out.Hand[id] = c
		}
	}
	return out
}

// WithOpponentReady returns a snapshot with the named opponent's ready flag
// set, leaving order and all other fields untouched. The bool is false when
// the id is unknown, which signals a stale snapshot to the caller.
func (g Game) WithOpponentReady(opponentID string) (Game, bool) {
	idx := -1
	for i, o := range g.Opponents {
		if o.ID == opponentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return g, false
	}
	out := g
	out.Opponents = append([]OpponentView(nil), g.Opponents...)
	out.Opponents[idx].Ready = true
	return out, true
}

// WithWinner returns a snapshot with the winner set. A winner already present
// is kept: terminal state is permanent.
func (g Game) WithWinner(name string) Game {
	if g.Winner != nil {
		return g
	}
	out := g
	out.Winner = &name
	return out
}

// Terminal reports whether the game has ended.
func (g Game) Terminal() bool {
	return g.Winner != nil
}
