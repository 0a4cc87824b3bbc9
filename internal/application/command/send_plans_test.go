package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
)

func newBatchFixture() (*fakeBackend, *fakeMessenger) {
	backend := newFakeBackend()
	backend.plans["pa"] = &mentoring.WeeklyPlan{ID: "pa", Gist: "gist-a"}
	backend.plans["pb"] = &mentoring.WeeklyPlan{ID: "pb", Gist: "gist-b"}
	backend.plans["pc"] = &mentoring.WeeklyPlan{ID: "pc", Gist: "gist-c"}
	return backend, newFakeMessenger()
}

func TestBatchDistributor_PartialFailureKeepsOrder(t *testing.T) {
	backend, messenger := newBatchFixture()
	backend.mentorOrders["m1"] = []mentoring.Order{
		planOrder("A", "alice", "pa"),
		planOrder("B", "bob", "pb"),
		planOrder("C", "carol", "pc"),
	}
	messenger.sendErr["bob"] = errors.New("peer flood")
	messenger.history["carol"] = []string{"old plan gist-c"}

	batch := NewBatchDistributor(backend, NewPlanDistributor(backend, messenger, discardLogger()), nil, discardLogger())
	report, err := batch.DistributeAll(context.Background(), "m1", "")

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)

	assert.Equal(t, "A", report.Outcomes[0].OrderID)
	assert.Equal(t, delivery.StatusOK, report.Outcomes[0].Status)

	assert.Equal(t, "B", report.Outcomes[1].OrderID)
	assert.Equal(t, delivery.StatusError, report.Outcomes[1].Status)
	assert.Equal(t, delivery.OutcomeSendFailed, report.Outcomes[1].Outcome)
	assert.Contains(t, report.Outcomes[1].Error, "peer flood")

	assert.Equal(t, "C", report.Outcomes[2].OrderID)
	assert.Equal(t, delivery.StatusWarning, report.Outcomes[2].Status)

	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "alice", messenger.sent[0].Handle)
}

func TestBatchDistributor_SkipsInactiveAndPlanless(t *testing.T) {
	backend, messenger := newBatchFixture()
	inactive := planOrder("I", "ivan", "pa")
	inactive.Active = false
	planless := planOrder("P", "petr", "pa")
	planless.Plan = nil
	backend.mentorOrders["m1"] = []mentoring.Order{inactive, planOrder("A", "alice", "pa"), planless}

	batch := NewBatchDistributor(backend, NewPlanDistributor(backend, messenger, discardLogger()), nil, discardLogger())
	report, err := batch.DistributeAll(context.Background(), "m1", "")

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "A", report.Outcomes[0].OrderID)
	assert.Equal(t, 2, report.Skipped)
}

func TestBatchDistributor_ResolutionErrorDoesNotStopBatch(t *testing.T) {
	backend, messenger := newBatchFixture()
	broken := planOrder("X", "xena", "missing-plan")
	backend.mentorOrders["m1"] = []mentoring.Order{broken, planOrder("A", "alice", "pa")}

	batch := NewBatchDistributor(backend, NewPlanDistributor(backend, messenger, discardLogger()), nil, discardLogger())
	report, err := batch.DistributeAll(context.Background(), "m1", "")

	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, delivery.StatusError, report.Outcomes[0].Status)
	assert.Empty(t, report.Outcomes[0].Outcome)
	assert.Equal(t, delivery.StatusOK, report.Outcomes[1].Status)
}

func TestBatchDistributor_RecordsSummary(t *testing.T) {
	backend, messenger := newBatchFixture()
	backend.mentorOrders["m1"] = []mentoring.Order{
		planOrder("A", "alice", "pa"),
		planOrder("B", "bob", "pb"),
	}
	messenger.history["bob"] = []string{"gist-b"}
	recorder := &fakeRecorder{err: errors.New("database is down")}

	batch := NewBatchDistributor(backend, NewPlanDistributor(backend, messenger, discardLogger()), recorder, discardLogger())
	report, err := batch.DistributeAll(context.Background(), "m1", "")

	require.NoError(t, err, "recorder failures never fail the batch")
	require.Len(t, recorder.runs, 1)

	run := recorder.runs[0]
	assert.Equal(t, report.RunID, run.RunID)
	assert.Equal(t, "m1", run.MentorID)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Sent)
	assert.Equal(t, 1, run.Duplicates)
	assert.Zero(t, run.Failed)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestBatchDistributor_ListFailure(t *testing.T) {
	backend, messenger := newBatchFixture()
	backend.listErr = errors.New("502 bad gateway")

	batch := NewBatchDistributor(backend, NewPlanDistributor(backend, messenger, discardLogger()), nil, discardLogger())
	report, err := batch.DistributeAll(context.Background(), "m1", "")

	require.Error(t, err)
	assert.Nil(t, report)
}

func TestSendPlansHandler_EmptyMentor(t *testing.T) {
	backend, messenger := newBatchFixture()
	handler := NewSendPlansHandler(NewBatchDistributor(backend, NewPlanDistributor(backend, messenger, discardLogger()), nil, discardLogger()))

	report, err := handler.Handle(context.Background(), SendPlansCommand{MentorID: "nobody"})

	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
	assert.NotEmpty(t, report.RunID)

	_, err = handler.Handle(context.Background(), SendPlansCommand{})
	assert.Error(t, err)
}
