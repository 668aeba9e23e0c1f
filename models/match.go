package models

import (
	"time"

	"github.com/google/uuid"
)

type GameMode string

const (
	ModeStandard     GameMode = "standard"
	ModeMixedDoubles GameMode = "mixed_doubles"
)

// RuleVariant selects the sheet rule the simulator applies.
type RuleVariant int

const (
	RuleFiveRock    RuleVariant = 0
	RuleNoTick      RuleVariant = 1
	RuleModifiedFGZ RuleVariant = 2 // mixed doubles
)

// Match is the root row of one head-to-head game. Team identities are
// generated at creation time; the team-name fields stay NULL until a client
// claims the slot, which is what makes the first-claim CAS possible.
type Match struct {
	ID               uuid.UUID
	Name             string
	Mode             GameMode
	AppliedRule      RuleVariant
	FirstTeamID      uuid.UUID
	SecondTeamID     uuid.UUID
	FirstTeamName    *string
	SecondTeamName   *string
	FirstPlayerIDs   []uuid.UUID // rotation order, len 4 (standard) or 2 (mixed doubles)
	SecondPlayerIDs  []uuid.UUID
	WinnerTeamID     *uuid.UUID
	ScoreID          uuid.UUID
	TimeLimit        float64 // seconds of regulation thinking time per side
	ExtraEndTime     float64 // seconds of extra-end thinking time per side
	StandardEndCount int
	SimulatorName    string
	TournamentID     uuid.UUID
	TournamentName   string
	CreatedAt        time.Time
	StartedAt        time.Time

	MixedDoubles *MixedDoublesSettings
}

// TeamID resolves a side to the team identity recorded on the match.
func (m *Match) TeamID(side Side) uuid.UUID {
	if side == SideFirst {
		return m.FirstTeamID
	}
	return m.SecondTeamID
}

// SideOf reports which slot a team identity occupies, if any.
func (m *Match) SideOf(teamID uuid.UUID) (Side, bool) {
	switch teamID {
	case m.FirstTeamID:
		return SideFirst, true
	case m.SecondTeamID:
		return SideSecond, true
	}
	return 0, false
}

// PlayerIDs returns the rotation-ordered roster for a side.
func (m *Match) PlayerIDs(side Side) []uuid.UUID {
	if side == SideFirst {
		return m.FirstPlayerIDs
	}
	return m.SecondPlayerIDs
}

// MixedDoublesSettings carries the per-match mixed-doubles configuration.
// The power-play fields go from nil to an end number exactly once per team.
type MixedDoublesSettings struct {
	MatchID                 uuid.UUID
	PositionedStonesPattern int
	FirstPowerPlayEnd       *int
	SecondPowerPlayEnd      *int
}

func (s *MixedDoublesSettings) PowerPlayEnd(side Side) *int {
	if side == SideFirst {
		return s.FirstPowerPlayEnd
	}
	return s.SecondPowerPlayEnd
}

// EndSetup is one entry of the append-only end-setup selector log. Entries
// exist for every end up to the current one (no gaps); SetupDone flips to
// true exactly once.
type EndSetup struct {
	MatchID     uuid.UUID
	EndNumber   int
	SetupTeamID uuid.UUID
	SetupDone   bool
}
