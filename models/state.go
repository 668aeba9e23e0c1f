package models

import (
	"time"

	"github.com/google/uuid"
)

// State is one append-only row of a match timeline. The newest row by
// CreatedAt is the authoritative current state.
//
// Nullability invariants:
//   - NextShotTeamID == nil and WinnerTeamID != nil: match is over.
//   - NextShotTeamID == nil, WinnerTeamID == nil, TotalShotNumber == nil:
//     mixed-doubles end setup has not happened yet for this end.
//   - ShotID names the shot that produced this state. It is written by a
//     back-fill after the shot row exists, and stays nil for states not
//     produced by a shot (match start, end setup, end rollover).
type State struct {
	ID                   uuid.UUID
	MatchID              uuid.UUID
	WinnerTeamID         *uuid.UUID
	EndNumber            int
	ShotNumber           *int // per-team shot index within the end
	TotalShotNumber      *int // shots taken in the end so far
	FirstRemaining       float64
	SecondRemaining      float64
	FirstExtraRemaining  float64
	SecondExtraRemaining float64
	StoneLayoutID        uuid.UUID
	ScoreID              uuid.UUID
	ShotID               *uuid.UUID
	NextShotTeamID       *uuid.UUID
	CreatedAt            time.Time

	// Joined rows, populated by the read paths that need them.
	StoneLayout *StoneLayout
	Score       *Score
}

// Remaining returns the applicable clock snapshot for a side given whether
// the end being played is an extra end.
func (s *State) Remaining(side Side, extraEnd bool) float64 {
	if extraEnd {
		if side == SideFirst {
			return s.FirstExtraRemaining
		}
		return s.SecondExtraRemaining
	}
	if side == SideFirst {
		return s.FirstRemaining
	}
	return s.SecondRemaining
}

func (s *State) SetRemaining(side Side, extraEnd bool, v float64) {
	switch {
	case extraEnd && side == SideFirst:
		s.FirstExtraRemaining = v
	case extraEnd && side == SideSecond:
		s.SecondExtraRemaining = v
	case side == SideFirst:
		s.FirstRemaining = v
	default:
		s.SecondRemaining = v
	}
}

// AwaitingEndSetup reports whether this state is the mixed-doubles
// pre-end window where only an end-setup request is legal.
func (s *State) AwaitingEndSetup() bool {
	return s.NextShotTeamID == nil && s.WinnerTeamID == nil && s.TotalShotNumber == nil
}

func (s *State) Finished() bool {
	return s.WinnerTeamID != nil
}
