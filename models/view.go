package models

// Client-facing view of one match state. Team identities are rendered as
// side labels ("team0"/"team1"); internal UUIDs never leave the server.

type StoneLayoutView struct {
	Team0 []Coordinate `json:"team0"`
	Team1 []Coordinate `json:"team1"`
}

type ScoreView struct {
	Team0 []int `json:"team0"`
	Team1 []int `json:"team1"`
}

type LastMoveView struct {
	Velocity       float64 `json:"velocity"`
	Angle          float64 `json:"angle"`
	Spin           Spin    `json:"spin"`
	ActualVelocity float64 `json:"actual_velocity"`
	ActualAngle    float64 `json:"actual_angle"`
}

type PowerPlayView struct {
	Team0 *int `json:"team0"`
	Team1 *int `json:"team1"`
}

type MixedDoublesView struct {
	EndSetupTeam            string        `json:"end_setup_team"`
	PositionedStonesPattern int           `json:"positioned_stones_pattern"`
	PowerPlayEnd            PowerPlayView `json:"power_play_end"`
}

// StateView is one snapshot event emitted on a match stream.
type StateView struct {
	WinnerTeam           *string           `json:"winner_team"`
	FirstTeamName        *string           `json:"first_team_name"`
	SecondTeamName       *string           `json:"second_team_name"`
	EndNumber            int               `json:"end_number"`
	ShotNumber           *int              `json:"shot_number"`
	TotalShotNumber      *int              `json:"total_shot_number"`
	NextShotTeam         *string           `json:"next_shot_team"`
	FirstRemaining       float64           `json:"first_team_remaining_time"`
	SecondRemaining      float64           `json:"second_team_remaining_time"`
	FirstExtraRemaining  float64           `json:"first_team_extra_end_remaining_time"`
	SecondExtraRemaining float64           `json:"second_team_extra_end_remaining_time"`
	MixedDoubles         *MixedDoublesView `json:"mixed_doubles,omitempty"`
	LastMove             *LastMoveView     `json:"last_move"`
	StoneLayout          StoneLayoutView   `json:"stone_coordinate"`
	Score                ScoreView         `json:"score"`
}
