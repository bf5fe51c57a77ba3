// Package selection tracks the locally chosen cards for the current turn.
package selection

import "github.com/sushigo/live/internal/game"

// Selector enforces the single- vs multi-select policy for one turn. With
// multi-select off, toggling behaves like a radio group: a new card replaces
// the selection and re-toggling the sole selected card clears it. With
// multi-select on (the chopsticks rule), toggling behaves like checkboxes
// with no local upper bound; the server stays authoritative on legality.
//
// The multi flag is fixed for the lifetime of the Selector. It is recomputed
// only when a fresh snapshot rebuilds the selector.
type Selector struct {
	selected []int
	multi    bool
}

// New builds a selector from an initial selection and the multi-select flag.
func New(initial []int, multi bool) *Selector {
	return &Selector{
		selected: append([]int(nil), initial...),
		multi:    multi,
	}
}

// FromPlayer builds a selector from a freshly loaded snapshot. Multi-select
// is derived from the selection already holding more than one card, i.e. the
// player is currently empowered by the chopsticks rule for this turn.
func FromPlayer(p game.PlayerView) *Selector {
	return New(p.SelectedCards, len(p.SelectedCards) > 1)
}

// Toggle flips the membership of cardID in the selection.
func (s *Selector) Toggle(cardID int) {
	idx := -1
	for i, id := range s.selected {
		if id == cardID {
			idx = i
			break
		}
	}

	if s.multi {
		if idx >= 0 {
			s.selected = append(s.selected[:idx], s.selected[idx+1:]...)
		} else {
			s.selected = append(s.selected, cardID)
		}
		return
	}

	if idx == 0 {
		s.selected = s.selected[:0]
	} else {
		s.selected = append(s.selected[:0], cardID)
	}
}

// Selected returns the current selection in toggle order. It is a pure read;
// confirming a turn does not clear local state. The returned slice is a copy.
func (s *Selector) Selected() []int {
	return append([]int(nil), s.selected...)
}

// Multi reports whether the chopsticks rule is active for this turn.
func (s *Selector) Multi() bool {
	return s.multi
}
