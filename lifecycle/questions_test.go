// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/quorum/apperr"
	"github.com/danielhkuo/quorum/models"
	"github.com/danielhkuo/quorum/testutil"
)

func yesNo(text string) models.CreateQuestionRequest {
	return models.CreateQuestionRequest{
		Text:    text,
		Options: []models.CreateOptionRequest{{Text: "Yes", Color: "green"}, {Text: "No", Color: "red"}},
	}
}

func TestCreateQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyDraft, false)

	first, err := f.gate.CreateQuestion(ctx, f.orgID, assemblyID, yesNo("Approve budget?"))
	require.NoError(t, err)
	assert.Equal(t, models.QuestionPending, first.State)
	assert.Equal(t, models.ModeCoefficient, first.Mode)
	assert.Equal(t, 1, first.Position)
	require.Len(t, first.Options, 2)
	assert.Equal(t, "Yes", first.Options[0].Text)
	assert.Equal(t, 1, first.Options[0].Position)

	req := yesNo("Paint the lobby?")
	req.Mode = models.ModeNominal
	second, err := f.gate.CreateQuestion(ctx, f.orgID, assemblyID, req)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, models.ModeNominal, second.Mode)

	questions, err := f.gate.ListQuestions(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, first.ID, questions[0].ID)
}

func TestCreateQuestion_Validation(t *testing.T) {
	f := newFixture(t)
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyDraft, false)

	req := yesNo("One option?")
	req.Options = req.Options[:1]
	_, err := f.gate.CreateQuestion(context.Background(), f.orgID, assemblyID, req)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	req = yesNo("Weird mode?")
	req.Mode = "ranked"
	_, err = f.gate.CreateQuestion(context.Background(), f.orgID, assemblyID, req)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateQuestion_GraceWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyActive, false)
	testutil.SetActivatedAt(t, f.conn, assemblyID, f.clock.Now())

	f.clock.Advance(time.Hour)
	_, err := f.gate.CreateQuestion(ctx, f.orgID, assemblyID, yesNo("Inside the window?"))
	require.NoError(t, err)

	demo := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyActive, true)
	testutil.SetActivatedAt(t, f.conn, demo, f.clock.Now())

	// The window and auto-finalize both end at 72h: past it the real
	// assembly is finalized on load and the edit is refused either way.
	f.clock.Advance(72 * time.Hour)
	_, err = f.gate.CreateQuestion(ctx, f.orgID, assemblyID, yesNo("Too late?"))
	assert.True(t, apperr.HasCode(err, apperr.CodeStructureFrozen), "got %v", err)

	_, err = f.gate.CreateQuestion(ctx, f.orgID, demo, yesNo("Demo is always editable"))
	assert.NoError(t, err)
}

func TestSetQuestionState_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyActive, false)
	questionID, _ := testutil.CreateTestQuestion(t, f.conn, assemblyID, models.QuestionPending, "", "Yes", "No")

	_, err := f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionClosed)
	assert.True(t, apperr.HasCode(err, apperr.CodeIllegalTransition), "pending -> closed, got %v", err)

	q, err := f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionOpen)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionOpen, q.State)
	assert.NotNil(t, q.OpenedAt)

	q, err = f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionOpen)
	require.NoError(t, err, "same state is a no-op")
	assert.Equal(t, models.QuestionOpen, q.State)

	q, err = f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionClosed)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionClosed, q.State)
	assert.NotNil(t, q.ClosedAt)

	_, err = f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionPending)
	assert.True(t, apperr.HasCode(err, apperr.CodeIllegalTransition), "closed -> pending, got %v", err)

	q, err = f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionOpen)
	require.NoError(t, err, "closed questions can reopen")
	assert.Nil(t, q.ClosedAt)

	var snapshots int
	require.NoError(t, f.conn.QueryRow(`SELECT COUNT(*) FROM result_snapshot WHERE question_id = $1`, questionID).Scan(&snapshots))
	assert.Equal(t, 1, snapshots)
}

func TestSetQuestionState_RequiresActiveAssembly(t *testing.T) {
	f := newFixture(t)
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyDraft, false)
	questionID, _ := testutil.CreateTestQuestion(t, f.conn, assemblyID, models.QuestionPending, "", "Yes", "No")

	_, err := f.gate.SetQuestionState(context.Background(), f.orgID, questionID, models.QuestionOpen)
	assert.True(t, apperr.HasCode(err, apperr.CodeAssemblyNotActive), "got %v", err)
}

func TestArchiveQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	units := f.addUnits(t, false, 50, 50)
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyActive, false)
	questionID, opts := testutil.CreateTestQuestion(t, f.conn, assemblyID, models.QuestionOpen, "", "Yes", "No")
	testutil.InsertTestVote(t, f.conn, questionID, units[0], opts[0])

	_, err := f.gate.ArchiveQuestion(ctx, f.orgID, questionID, true)
	assert.True(t, apperr.HasCode(err, apperr.CodeIllegalTransition), "open question, got %v", err)

	_, err = f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionClosed)
	require.NoError(t, err)

	before, err := f.tally.GetParticipation(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	assert.Equal(t, 1, before.VotersCount)

	q, err := f.gate.ArchiveQuestion(ctx, f.orgID, questionID, true)
	require.NoError(t, err)
	assert.True(t, q.Archived)

	after, err := f.tally.GetParticipation(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	assert.Zero(t, after.VotersCount, "archived questions do not count")

	results, err := f.tally.GetQuestionResults(ctx, f.orgID, questionID)
	require.NoError(t, err)
	assert.True(t, results.Archived)
	assert.Equal(t, 1, results.VotersCount)

	_, err = f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionOpen)
	assert.True(t, apperr.HasCode(err, apperr.CodeIllegalTransition), "got %v", err)

	q, err = f.gate.ArchiveQuestion(ctx, f.orgID, questionID, false)
	require.NoError(t, err)
	assert.False(t, q.Archived)
}

func TestArchiveQuestion_DropsFromMinutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	units := f.addUnits(t, false, 50, 50)
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyActive, false)
	archivedID, archivedOpts := testutil.CreateTestQuestion(t, f.conn, assemblyID, models.QuestionOpen, "", "Yes", "No")
	keptID, keptOpts := testutil.CreateTestQuestion(t, f.conn, assemblyID, models.QuestionOpen, "", "Yes", "No")
	testutil.InsertTestVote(t, f.conn, archivedID, units[0], archivedOpts[0])
	testutil.InsertTestVote(t, f.conn, keptID, units[1], keptOpts[1])

	for _, id := range []string{archivedID, keptID} {
		_, err := f.gate.SetQuestionState(ctx, f.orgID, id, models.QuestionClosed)
		require.NoError(t, err)
	}

	minutes, err := f.tally.Minutes(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	require.Len(t, minutes.Snapshots, 2)

	_, err = f.gate.ArchiveQuestion(ctx, f.orgID, archivedID, true)
	require.NoError(t, err)

	minutes, err = f.tally.Minutes(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	require.Len(t, minutes.Snapshots, 1)
	assert.Equal(t, keptID, minutes.Snapshots[0].QuestionID)

	participation, err := f.tally.GetParticipation(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	assert.Equal(t, 1, participation.VotersCount)
	assert.Equal(t, 50.0, participation.CoefficientPercent)

	results, err := f.tally.GetQuestionResults(ctx, f.orgID, archivedID)
	require.NoError(t, err)
	assert.True(t, results.Archived)
	assert.Equal(t, 1, results.Options[0].VotesCount)
}

func TestMinutes_LatestSnapshotWinsAtSameInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	units := f.addUnits(t, false, 50, 50)
	assemblyID := testutil.CreateTestAssembly(t, f.conn, f.orgID, models.AssemblyActive, false)
	questionID, opts := testutil.CreateTestQuestion(t, f.conn, assemblyID, models.QuestionOpen, "", "Yes", "No")
	testutil.InsertTestVote(t, f.conn, questionID, units[0], opts[0])

	// The fake clock never moves, so every snapshot shares computed_at
	const rounds = 6
	for i := 0; i < rounds; i++ {
		if i > 0 {
			_, err := f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionOpen)
			require.NoError(t, err)
			_, err = f.conn.Exec(`UPDATE vote SET option_id = $1 WHERE question_id = $2`, opts[i%2], questionID)
			require.NoError(t, err)
		}
		_, err := f.gate.SetQuestionState(ctx, f.orgID, questionID, models.QuestionClosed)
		require.NoError(t, err)
	}

	minutes, err := f.tally.Minutes(ctx, f.orgID, assemblyID)
	require.NoError(t, err)
	require.Len(t, minutes.Snapshots, 1)
	snap := minutes.Snapshots[0]
	assert.Equal(t, rounds, snap.Seq)
	last := (rounds - 1) % 2
	assert.Equal(t, 1, snap.Results.Options[last].VotesCount)
	assert.Equal(t, 0, snap.Results.Options[1-last].VotesCount)
}
