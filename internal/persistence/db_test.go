package persistence

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/talgya/rent-market/internal/engine"
)

// StoreSuite exercises run storage against an in-memory database.
type StoreSuite struct {
	suite.Suite
	db    *DB
	sim   *engine.Simulation
	runID uuid.UUID
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	db, err := Open(":memory:")
	s.Require().NoError(err)
	s.db = db

	p := engine.DefaultParams()
	p.Households, p.Units, p.Landlords, p.Years, p.Seed = 30, 25, 3, 2, 99
	sim, err := engine.Build(p, nil)
	s.Require().NoError(err)
	s.sim = sim

	s.runID = uuid.New()
	s.Require().NoError(s.db.CreateRun(s.runID, sim.Params))
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *StoreSuite) advance() *engine.Result {
	r, err := s.sim.Advance()
	s.Require().NoError(err)
	s.Require().NotNil(r)
	return r
}

func (s *StoreSuite) TestCreateAndGetRun() {
	run, err := s.db.GetRun(s.runID)
	s.Require().NoError(err)
	s.Equal(int64(99), run.Seed)
	s.Equal("none", run.Policy)
	s.Equal(30, run.Households)
	s.Zero(run.Steps)
	s.False(run.FinishedAt.Valid)

	_, err = s.db.GetRun(uuid.New())
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestSaveFrameRoundTripsMetrics() {
	var want []engine.PeriodMetrics
	for i := 0; i < 3; i++ {
		r := s.advance()
		s.Require().NoError(s.db.SaveFrame(s.runID, r))
		want = append(want, r.Metrics)
	}

	got, err := s.db.Metrics(s.runID)
	s.Require().NoError(err)
	s.Equal(want, got)

	run, err := s.db.GetRun(s.runID)
	s.Require().NoError(err)
	s.Equal(3, run.Steps)
}

func (s *StoreSuite) TestFrameIsWireJSON() {
	r := s.advance()
	s.Require().NoError(s.db.SaveFrame(s.runID, r))

	raw, err := s.db.Frame(s.runID, 1)
	s.Require().NoError(err)
	var f engine.WireFrame
	s.Require().NoError(json.Unmarshal(raw, &f))
	s.Equal(1, f.Step)
	s.Len(f.Units, 25)

	_, err = s.db.Frame(s.runID, 2)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestSavingAStepTwiceReplacesIt() {
	r := s.advance()
	s.Require().NoError(s.db.SaveFrame(s.runID, r))
	s.Require().NoError(s.db.SaveFrame(s.runID, r))

	got, err := s.db.Metrics(s.runID)
	s.Require().NoError(err)
	s.Len(got, 1)

	events, err := s.db.RecentEvents(s.runID, 1000)
	s.Require().NoError(err)
	s.Len(events, len(r.Events))
}

func (s *StoreSuite) TestRecorderAndFinish() {
	rec := s.db.Recorder(s.runID)
	for !s.sim.Done() {
		rec(s.advance())
	}
	s.Require().NoError(s.db.FinishRun(s.runID))

	run, err := s.db.GetRun(s.runID)
	s.Require().NoError(err)
	s.Equal(s.sim.Horizon(), run.Steps)
	s.True(run.FinishedAt.Valid)

	runs, err := s.db.Runs(10)
	s.Require().NoError(err)
	s.Len(runs, 1)

	s.ErrorIs(s.db.FinishRun(uuid.New()), ErrNotFound)
}

func (s *StoreSuite) TestMeta() {
	s.Require().NoError(s.db.SaveMeta(s.runID, "scenario", "cap"))
	s.Require().NoError(s.db.SaveMeta(s.runID, "scenario", "no_cap"))
	v, err := s.db.GetMeta(s.runID, "scenario")
	s.Require().NoError(err)
	s.Equal("no_cap", v)

	_, err = s.db.GetMeta(s.runID, "missing")
	s.ErrorIs(err, ErrNotFound)
}
