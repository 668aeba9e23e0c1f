package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/icehouse-dev/curling-server/coordination"
	"github.com/icehouse-dev/curling-server/models"
	"github.com/icehouse-dev/curling-server/pubsub"
	"github.com/icehouse-dev/curling-server/repositories"
	"github.com/icehouse-dev/curling-server/rules"
	"github.com/icehouse-dev/curling-server/simulator"
)

// In-memory repository fakes. They ignore the executor argument; the fake
// tx runner hands the closure a nil executor, so a service under test runs
// its transactional block as plain sequential calls.

type memTxRunner struct{}

func (memTxRunner) InTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type memStore struct {
	mu sync.Mutex

	matches      map[uuid.UUID]*models.Match
	scores       map[uuid.UUID]*models.Score
	layouts      map[uuid.UUID]*models.StoneLayout
	states       []*models.State
	players      map[uuid.UUID]*models.Player
	shots        map[uuid.UUID]*models.ShotRecord
	trajectories map[uuid.UUID]*models.Trajectory
	users        map[uuid.UUID]*models.User
	bindings     map[string]*models.MatchBinding
	settings     map[uuid.UUID]*models.MixedDoublesSettings
	endSetups    map[string]*models.EndSetup
}

func newMemStore() *memStore {
	return &memStore{
		matches:      make(map[uuid.UUID]*models.Match),
		scores:       make(map[uuid.UUID]*models.Score),
		layouts:      make(map[uuid.UUID]*models.StoneLayout),
		players:      make(map[uuid.UUID]*models.Player),
		shots:        make(map[uuid.UUID]*models.ShotRecord),
		trajectories: make(map[uuid.UUID]*models.Trajectory),
		users:        make(map[uuid.UUID]*models.User),
		bindings:     make(map[string]*models.MatchBinding),
		settings:     make(map[uuid.UUID]*models.MixedDoublesSettings),
		endSetups:    make(map[string]*models.EndSetup),
	}
}

func bindingKey(userID, matchID uuid.UUID) string {
	return userID.String() + ":" + matchID.String()
}

func endSetupKey(matchID uuid.UUID, endNumber int) string {
	return fmt.Sprintf("%s:%d", matchID, endNumber)
}

type fakeMatchRepo struct{ s *memStore }

func (r fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *match
	stored.MixedDoubles = nil
	r.s.matches[match.ID] = &stored
	return nil
}

func (r fakeMatchRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	out := *m
	return &out, nil
}

func (r fakeMatchRepo) ClaimTeamSlot(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, side models.Side, name string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if side == models.SideFirst {
		if m.FirstTeamName != nil {
			return false, nil
		}
		m.FirstTeamName = &name
		return true, nil
	}
	if m.SecondTeamName != nil {
		return false, nil
	}
	m.SecondTeamName = &name
	return true, nil
}

func (r fakeMatchRepo) SetPlayers(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, side models.Side, playerIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if side == models.SideFirst {
		m.FirstPlayerIDs = playerIDs
	} else {
		m.SecondPlayerIDs = playerIDs
	}
	return nil
}

func (r fakeMatchRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, id uuid.UUID, winnerTeamID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.WinnerTeamID = &winnerTeamID
	return nil
}

type fakeScoreRepo struct{ s *memStore }

func (r fakeScoreRepo) Create(_ context.Context, _ repositories.SQLExecutor, score *models.Score) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.scores[score.ID] = score
	return nil
}

func (r fakeScoreRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Score, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	score, ok := r.s.scores[id]
	if !ok {
		return nil, repositories.ErrScoreNotFound
	}
	return score, nil
}

func (r fakeScoreRepo) Update(_ context.Context, _ repositories.SQLExecutor, score *models.Score) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.scores[score.ID]; !ok {
		return repositories.ErrScoreNotFound
	}
	r.s.scores[score.ID] = score
	return nil
}

type fakeLayoutRepo struct{ s *memStore }

func (r fakeLayoutRepo) Create(_ context.Context, _ repositories.SQLExecutor, layout *models.StoneLayout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.layouts[layout.ID] = layout
	return nil
}

func (r fakeLayoutRepo) GetByID(_ context.Context, id uuid.UUID) (*models.StoneLayout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	layout, ok := r.s.layouts[id]
	if !ok {
		return nil, repositories.ErrStoneLayoutNotFound
	}
	return layout, nil
}

type fakeStateRepo struct{ s *memStore }

func (r fakeStateRepo) join(state *models.State) *models.State {
	out := *state
	if layout, ok := r.s.layouts[state.StoneLayoutID]; ok {
		out.StoneLayout = layout
	}
	if score, ok := r.s.scores[state.ScoreID]; ok {
		out.Score = score
	}
	return &out
}

func (r fakeStateRepo) Create(_ context.Context, _ repositories.SQLExecutor, state *models.State) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *state
	r.s.states = append(r.s.states, &stored)
	return nil
}

func (r fakeStateRepo) GetLatestByMatch(_ context.Context, matchID uuid.UUID) (*models.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.states) - 1; i >= 0; i-- {
		if r.s.states[i].MatchID == matchID {
			return r.join(r.s.states[i]), nil
		}
	}
	return nil, repositories.ErrStateNotFound
}

func (r fakeStateRepo) GetByID(_ context.Context, id uuid.UUID) (*models.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, state := range r.s.states {
		if state.ID == id {
			return r.join(state), nil
		}
	}
	return nil, repositories.ErrStateNotFound
}

func (r fakeStateRepo) ListByEnd(_ context.Context, matchID uuid.UUID, endNumber int) ([]*models.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.State
	for _, state := range r.s.states {
		if state.MatchID == matchID && state.EndNumber == endNumber {
			out = append(out, r.join(state))
		}
	}
	return out, nil
}

func (r fakeStateRepo) LinkShot(_ context.Context, _ repositories.SQLExecutor, stateID, shotID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, state := range r.s.states {
		if state.ID == stateID {
			id := shotID
			state.ShotID = &id
			return nil
		}
	}
	return repositories.ErrStateNotFound
}

type fakePlayerRepo struct{ s *memStore }

func (r fakePlayerRepo) Create(_ context.Context, _ repositories.SQLExecutor, player *models.Player) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.players[player.ID] = player
	return nil
}

func (r fakePlayerRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	player, ok := r.s.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return player, nil
}

func (r fakePlayerRepo) FindByTeamAndName(_ context.Context, teamID uuid.UUID, name string) (*models.Player, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, player := range r.s.players {
		if player.TeamID == teamID && player.Name == name {
			return player, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

type fakeShotRepo struct{ s *memStore }

func (r fakeShotRepo) Create(_ context.Context, _ repositories.SQLExecutor, shot *models.ShotRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.shots[shot.ID] = shot
	return nil
}

func (r fakeShotRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ShotRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	shot, ok := r.s.shots[id]
	if !ok {
		return nil, repositories.ErrShotNotFound
	}
	return shot, nil
}

func (r fakeShotRepo) CreateTrajectory(_ context.Context, _ repositories.SQLExecutor, trajectory *models.Trajectory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.trajectories[trajectory.ID] = trajectory
	return nil
}

func (r fakeShotRepo) GetTrajectory(_ context.Context, id uuid.UUID) (*models.Trajectory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	trajectory, ok := r.s.trajectories[id]
	if !ok {
		return nil, repositories.ErrTrajectoryNotFound
	}
	return trajectory, nil
}

type fakeEndSetupRepo struct{ s *memStore }

func (r fakeEndSetupRepo) CreateSettings(_ context.Context, _ repositories.SQLExecutor, settings *models.MixedDoublesSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *settings
	r.s.settings[settings.MatchID] = &stored
	return nil
}

func (r fakeEndSetupRepo) getSettings(matchID uuid.UUID) (*models.MixedDoublesSettings, error) {
	settings, ok := r.s.settings[matchID]
	if !ok {
		return nil, repositories.ErrMixedDoublesSettingsNotFound
	}
	out := *settings
	return &out, nil
}

func (r fakeEndSetupRepo) GetSettings(_ context.Context, matchID uuid.UUID) (*models.MixedDoublesSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.getSettings(matchID)
}

func (r fakeEndSetupRepo) GetSettingsForUpdate(_ context.Context, _ repositories.SQLExecutor, matchID uuid.UUID) (*models.MixedDoublesSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.getSettings(matchID)
}

func (r fakeEndSetupRepo) SetPowerPlayEnd(_ context.Context, _ repositories.SQLExecutor, matchID uuid.UUID, side models.Side, endNumber int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	settings, ok := r.s.settings[matchID]
	if !ok {
		return repositories.ErrMixedDoublesSettingsNotFound
	}
	end := endNumber
	if side == models.SideFirst {
		settings.FirstPowerPlayEnd = &end
	} else {
		settings.SecondPowerPlayEnd = &end
	}
	return nil
}

func (r fakeEndSetupRepo) CreateEndSetup(_ context.Context, _ repositories.SQLExecutor, setup *models.EndSetup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *setup
	r.s.endSetups[endSetupKey(setup.MatchID, setup.EndNumber)] = &stored
	return nil
}

func (r fakeEndSetupRepo) getEndSetup(matchID uuid.UUID, endNumber int) (*models.EndSetup, error) {
	setup, ok := r.s.endSetups[endSetupKey(matchID, endNumber)]
	if !ok {
		return nil, repositories.ErrEndSetupNotFound
	}
	out := *setup
	return &out, nil
}

func (r fakeEndSetupRepo) GetEndSetup(_ context.Context, matchID uuid.UUID, endNumber int) (*models.EndSetup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.getEndSetup(matchID, endNumber)
}

func (r fakeEndSetupRepo) GetEndSetupForUpdate(_ context.Context, _ repositories.SQLExecutor, matchID uuid.UUID, endNumber int) (*models.EndSetup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.getEndSetup(matchID, endNumber)
}

func (r fakeEndSetupRepo) MarkSetupDone(_ context.Context, _ repositories.SQLExecutor, matchID uuid.UUID, endNumber int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	setup, ok := r.s.endSetups[endSetupKey(matchID, endNumber)]
	if !ok {
		return repositories.ErrEndSetupNotFound
	}
	setup.SetupDone = true
	return nil
}

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) Create(_ context.Context, _ repositories.SQLExecutor, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Name == user.Name {
			return repositories.ErrUserNameTaken
		}
	}
	r.s.users[user.ID] = user
	return nil
}

func (r fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return user, nil
}

func (r fakeUserRepo) GetByName(_ context.Context, name string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, user := range r.s.users {
		if user.Name == name {
			return user, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type fakeBindingRepo struct{ s *memStore }

func (r fakeBindingRepo) Create(_ context.Context, _ repositories.SQLExecutor, binding *models.MatchBinding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bindings[bindingKey(binding.UserID, binding.MatchID)] = binding
	return nil
}

func (r fakeBindingRepo) Get(_ context.Context, userID, matchID uuid.UUID) (*models.MatchBinding, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	binding, ok := r.s.bindings[bindingKey(userID, matchID)]
	if !ok {
		return nil, repositories.ErrBindingNotFound
	}
	return binding, nil
}

// scriptedSim is a deterministic backend: it drops the delivered stone at
// whatever coordinate the current test's place function dictates.
type scriptedSim struct {
	mu    sync.Mutex
	place func(req simulator.Request) models.Coordinate
}

var stub = &scriptedSim{}

func init() {
	simulator.Register(stub)
}

func (*scriptedSim) Name() string { return "scripted" }

// setPlacement scripts stone placement for one test. The default parks
// every stone well outside the house, which scores a blank end.
func (s *scriptedSim) setPlacement(place func(req simulator.Request) models.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.place = place
}

func (s *scriptedSim) Simulate(req simulator.Request) (*models.StoneLayout, *models.Trajectory, error) {
	s.mu.Lock()
	place := s.place
	s.mu.Unlock()

	layout := req.Layout.Clone()
	coord := models.Coordinate{X: 0.3 * float64(req.StoneIndex+1), Y: 30 + float64(req.Side)}
	if place != nil {
		coord = place(req)
	}
	layout.Stones(req.Side)[req.StoneIndex] = coord

	trajectory := &models.Trajectory{
		ID: uuid.New(),
		Frames: []models.TrajectoryFrame{{
			T:      0,
			First:  append([]models.Coordinate(nil), layout.First...),
			Second: append([]models.Coordinate(nil), layout.Second...),
		}},
	}
	return layout, trajectory, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv wires the three engine services onto the in-memory fakes, a
// process-local broker and the scripted simulator.
type testEnv struct {
	store   *memStore
	matches MatchService
	shots   *shotService
	setups  EndSetupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	logger := testLogger()
	coordinator := coordination.New(pubsub.NewMemoryBroker(), logger)
	tx := memTxRunner{}

	matchRepo := fakeMatchRepo{store}
	scoreRepo := fakeScoreRepo{store}
	layoutRepo := fakeLayoutRepo{store}
	stateRepo := fakeStateRepo{store}
	playerRepo := fakePlayerRepo{store}
	bindingRepo := fakeBindingRepo{store}
	setupRepo := fakeEndSetupRepo{store}
	shotRepo := fakeShotRepo{store}

	matches := NewMatchService(tx, matchRepo, scoreRepo, layoutRepo, stateRepo,
		playerRepo, bindingRepo, setupRepo, shotRepo, coordinator, logger)
	shots := NewShotService(tx, matches, stateRepo, layoutRepo, scoreRepo,
		playerRepo, shotRepo, setupRepo, matchRepo, coordinator, logger).(*shotService)
	shots.normal = func() float64 { return 0 }
	setups := NewEndSetupService(tx, matches, stateRepo, layoutRepo, setupRepo, coordinator, logger)

	stub.setPlacement(nil)
	t.Cleanup(func() { stub.setPlacement(nil) })

	return &testEnv{
		store:   store,
		matches: matches,
		shots:   shots,
		setups:  setups,
	}
}

// startConfiguredMatch creates a match on the scripted simulator and claims
// both team slots, first "Alpha" then "Bravo".
func (env *testEnv) startConfiguredMatch(t *testing.T, mode models.GameMode, ends int) *models.Match {
	t.Helper()
	ctx := context.Background()

	match, err := env.matches.StartMatch(ctx, StartMatchInput{
		Name:             "test match",
		Mode:             mode,
		StandardEndCount: ends,
		SimulatorName:    "scripted",
	})
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	for i, name := range []string{"Alpha", "Bravo"} {
		side, err := env.matches.ConfigureTeam(ctx, uuid.New(), match.ID, ConfigureTeamInput{TeamName: name})
		if err != nil {
			t.Fatalf("ConfigureTeam %q: %v", name, err)
		}
		if side != models.Side(i) {
			t.Fatalf("ConfigureTeam %q: got side %s, want %s", name, side, models.Side(i))
		}
	}
	return match
}

func (env *testEnv) submit(t *testing.T, matchID uuid.UUID, side models.Side) *models.StateView {
	t.Helper()
	view, err := env.shots.SubmitShot(context.Background(), matchID, side, models.ShotParams{
		Velocity: 2.0,
		Spin:     models.SpinClockwise,
	})
	if err != nil {
		t.Fatalf("SubmitShot side %s: %v", side, err)
	}
	return view
}

// playEnd delivers a full end of alternating shots and returns the view
// produced by the closing shot.
func (env *testEnv) playEnd(t *testing.T, match *models.Match, opener models.Side) *models.StateView {
	t.Helper()
	var view *models.StateView
	side := opener
	for i := 0; i < rules.ShotsPerEnd(match.Mode); i++ {
		view = env.submit(t, match.ID, side)
		side = side.Opponent()
	}
	return view
}

// placeScorerNearTee scripts the end so the given side's delivered stones
// land at the button and the opponent's are thrown away.
func placeScorerNearTee(scorer models.Side) func(req simulator.Request) models.Coordinate {
	return func(req simulator.Request) models.Coordinate {
		if req.Side == scorer {
			return models.Coordinate{X: 0.05 * float64(req.StoneIndex), Y: rules.TeeLineY}
		}
		return models.Coordinate{X: 2.5, Y: 30 + 0.3*float64(req.StoneIndex)}
	}
}
