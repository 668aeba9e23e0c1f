package services

import "errors"

// Shared service-level errors, mapped to HTTP statuses in the handlers.
var (
	// Not found
	ErrMatchNotFound  = errors.New("match not found")
	ErrStateNotFound  = errors.New("match state not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrUserNotFound   = errors.New("user not found")

	// Validation
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidGameMode    = errors.New("invalid game mode")
	ErrInvalidPattern     = errors.New("invalid positioned stones pattern")
	ErrInvalidSelection   = errors.New("invalid end setup selection")
	ErrInvalidSpin        = errors.New("spin must be cw or ccw")
	ErrInvalidRosterSize  = errors.New("roster size does not match game mode")
	ErrUnknownSimulator   = errors.New("unknown simulator")
	ErrInvalidCredentials = errors.New("invalid user name or password")

	// Conflicts and sequencing
	ErrTeamSlotsTaken    = errors.New("both team slots are already taken")
	ErrAlreadyBound      = errors.New("user is already bound to another team in this match")
	ErrNotYourTurn       = errors.New("it is not this team's turn to throw")
	ErrMatchFinished     = errors.New("match is already finished")
	ErrEndSetupRequired  = errors.New("end setup has not been performed for this end")
	ErrEndSetupDone      = errors.New("end setup was already performed for this end")
	ErrEndSetupWrongTeam = errors.New("this team is not the end setup selector")
	ErrNotMixedDoubles   = errors.New("operation is only valid for mixed doubles matches")
	ErrPowerPlayUsed     = errors.New("power play was already used by this team")
	ErrUserNameTaken     = errors.New("user name is already taken")
	ErrNotMatchPlayer    = errors.New("user is not bound to a team in this match")
)
