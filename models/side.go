package models

import "fmt"

// Side identifies one of the two team slots of a match. It replaces the
// stringly-typed "team0"/"team1" labels at the engine boundary; the mapping
// to wire labels happens only in ParseSide/String.
type Side int

const (
	SideFirst  Side = 0
	SideSecond Side = 1
)

func (s Side) Opponent() Side {
	if s == SideFirst {
		return SideSecond
	}
	return SideFirst
}

func (s Side) String() string {
	if s == SideFirst {
		return "team0"
	}
	return "team1"
}

func (s Side) Valid() bool {
	return s == SideFirst || s == SideSecond
}

func ParseSide(label string) (Side, error) {
	switch label {
	case "team0":
		return SideFirst, nil
	case "team1":
		return SideSecond, nil
	}
	return 0, fmt.Errorf("unknown side label %q", label)
}
