package game

// CardKind discriminates the card union on the wire.
type CardKind string

const (
	KindChopsticks CardKind = "chopsticks"
	KindDumpling   CardKind = "dumpling"
	KindMakiRolls  CardKind = "makiRolls"
	KindNigiri     CardKind = "nigiri"
	KindPudding    CardKind = "pudding"
	KindSashimi    CardKind = "sashimi"
	KindTempura    CardKind = "tempura"
	KindWasabi     CardKind = "wasabi"
)

// MakiLevel is the maki roll quantity tag.
type MakiLevel string

const (
	MakiOne   MakiLevel = "one"
	MakiTwo   MakiLevel = "two"
	MakiThree MakiLevel = "three"
)

// Count returns the number of rolls the level stands for.
func (m MakiLevel) Count() int {
	switch m {
	case MakiTwo:
		return 2
	case MakiThree:
		return 3
	default:
		return 1
	}
}

// NigiriKind is the nigiri variant tag.
type NigiriKind string

const (
	NigiriEgg    NigiriKind = "egg"
	NigiriSalmon NigiriKind = "salmon"
	NigiriSquid  NigiriKind = "squid"
)

// Card is one card from a hand. The server serializes cards as an
// internally-tagged union, e.g. {"kind":"makiRolls","makiRolls":"two"} or
// {"kind":"nigiri","nigiri":"salmon"}; plain kinds carry only the tag.
// Cards have no intrinsic identity, only their key within a hand.
type Card struct {
	Kind      CardKind   `json:"kind"`
	MakiRolls MakiLevel  `json:"makiRolls,omitempty"`
	Nigiri    NigiriKind `json:"nigiri,omitempty"`
}

// FaceUpKind discriminates the face-up card union.
type FaceUpKind string

const (
	FaceUpPlain  FaceUpKind = "card"
	FaceUpWasabi FaceUpKind = "wasabi"
)

// NigiriCard is a nigiri serialized on its own, as it appears atop a wasabi:
// {"nigiri":"salmon"}.
type NigiriCard struct {
	Nigiri NigiriKind `json:"nigiri"`
}

// FaceUpCard is one entry of a player's played-card sequence: either a plain
// card keeping the hand id it was played under, or a wasabi optionally paired
// with the nigiri placed on top of it.
type FaceUpCard struct {
	Kind   FaceUpKind  `json:"kind"`
	ID     int         `json:"id,omitempty"`
	Card   *Card       `json:"card,omitempty"`
	Nigiri *NigiriCard `json:"nigiri,omitempty"`
}

// Hand maps card identifiers to cards. Identifiers are stable within a turn
// and never reused across turns. JSON object keys are the decimal ids.
type Hand map[int]Card
