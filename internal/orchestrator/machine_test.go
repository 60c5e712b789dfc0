package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/council/internal/logging"
)

// MockPhaseRunner is a mock implementation of phaseRunner
type MockPhaseRunner struct {
	mock.Mock
}

func (m *MockPhaseRunner) RunPhase(ctx context.Context, rec *Record, phase Phase) (PhaseOutcome, error) {
	args := m.Called(ctx, rec, phase)
	return args.Get(0).(PhaseOutcome), args.Error(1)
}

func newRunnerOrchestrator(t *testing.T, runner phaseRunner, gates ...Gate) *Orchestrator {
	t.Helper()
	opts := Options{Router: offlineRouter(), Logger: logging.NewTestLogger().Logger, Gates: gates}
	opts.applyDefaults()
	o := newOrchestrator(opts, runner)
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	return o
}

func TestMachine_RunsPhasesInOrder(t *testing.T) {
	runner := &MockPhaseRunner{}
	var (
		mu    sync.Mutex
		order []Phase
	)
	runner.On("RunPhase", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rec := args.Get(1).(*Record)
			phase := args.Get(2).(Phase)
			assert.Equal(t, phase, rec.Snapshot().Phase, "phase is set before it runs")
			mu.Lock()
			order = append(order, phase)
			mu.Unlock()
		}).
		Return(PhaseOutcome{}, nil)

	o := newRunnerOrchestrator(t, runner)
	id, err := o.Start(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	s := await(t, o, id)
	assert.Equal(t, StatusCompleted, s.Status)
	mu.Lock()
	assert.Equal(t, WorkPhases(), order)
	mu.Unlock()

	require.NotNil(t, s.Synthesis)
	assert.Zero(t, s.Synthesis.Confidence, "no insights were merged")
	assert.Empty(t, s.Recommendations)
}

func TestMachine_RecoversDriverPanic(t *testing.T) {
	runner := &MockPhaseRunner{}
	var (
		mu     sync.Mutex
		called []Phase
	)
	runner.On("RunPhase", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			phase := args.Get(2).(Phase)
			mu.Lock()
			called = append(called, phase)
			mu.Unlock()
			if phase == PhaseDesign {
				panic("driver bug")
			}
		}).
		Return(PhaseOutcome{}, nil)

	o := newRunnerOrchestrator(t, runner)
	id, err := o.Start(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	s := await(t, o, id)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Contains(t, s.Error, "internal error: driver bug")
	assert.Equal(t, 1, s.Metadata.ErrorCount)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseAnalysis, PhaseDesign}, called, "planning never runs")
}

func TestMachine_CustomGateStopsBeforeSynthesis(t *testing.T) {
	runner := &MockPhaseRunner{}
	runner.On("RunPhase", mock.Anything, mock.Anything, mock.Anything).Return(PhaseOutcome{}, nil)

	gate := NewMockGate("review")
	gate.On("Check", mock.Anything, mock.Anything).Return(nil).Times(3)
	gate.On("Check", mock.Anything, mock.Anything).
		Return(&Verdict{Gate: "review", Status: StatusFailed, Reason: "review rejected", CountsAsError: true})

	o := newRunnerOrchestrator(t, runner, gate)
	id, err := o.Start(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	s := await(t, o, id)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, PhasePlanning, s.Phase)
	assert.Equal(t, "review rejected", s.Error)
	assert.Equal(t, 1, s.Metadata.ErrorCount)
	runner.AssertNumberOfCalls(t, "RunPhase", 3)
}
