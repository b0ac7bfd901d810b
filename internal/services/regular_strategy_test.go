package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"missionlog/internal/models"
	"missionlog/internal/pkg/limiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngUpload(size int64) *models.ImageUpload {
	return &models.ImageUpload{
		Filename:    "proof.png",
		ContentType: "image/png",
		Size:        size,
		Body:        bytes.NewReader(make([]byte, size)),
	}
}

func TestRegularStartCreatesPendingThenInProgress(t *testing.T) {
	f := newFixture(t)
	f.enroll(regularMission, testUserID)
	ctx := context.Background()

	response, err := f.regular().StartExecution(ctx, regularMission, testUserID, f.today())
	require.NoError(t, err)
	assert.Equal(t, models.EXECUTION_KIND_REGULAR, response.Kind)
	assert.Equal(t, models.EXECUTION_STATUS_IN_PROGRESS, response.Status)
	assert.Equal(t, "2024-12-15", response.Date)
	require.NotNil(t, response.StartedAt)

	assert.Equal(t, []models.ExecutionStatus{
		models.EXECUTION_STATUS_PENDING,
		models.EXECUTION_STATUS_IN_PROGRESS,
	}, f.executions.writes)
}

func TestRegularStartExistingRowPersistsOnce(t *testing.T) {
	f := newFixture(t)
	p := f.enroll(regularMission, testUserID)
	f.executions.seed(models.NewMissionExecution(p, f.today(), f.clock()))

	_, err := f.regular().StartExecution(context.Background(), regularMission, testUserID, f.today())
	require.NoError(t, err)

	assert.Equal(t, []models.ExecutionStatus{models.EXECUTION_STATUS_IN_PROGRESS}, f.executions.writes)
	assert.Equal(t, 1, f.executions.count())
}

func TestStartRejectedWhileAnotherExecutionInProgress(t *testing.T) {
	f := newFixture(t)
	f.enroll(regularMission, testUserID)
	f.enroll(otherMission, testUserID)
	f.enroll(pinnedMission, testUserID)
	ctx := context.Background()

	_, err := f.regular().StartExecution(ctx, regularMission, testUserID, f.today())
	require.NoError(t, err)

	_, err = f.regular().StartExecution(ctx, otherMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrExecutionInProgress.Error())

	_, err = f.pinned().StartExecution(ctx, pinnedMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrExecutionInProgress.Error())
}

func TestStartRejectedWhilePinnedInstanceInProgress(t *testing.T) {
	f := newFixture(t)
	f.enroll(regularMission, testUserID)
	f.enroll(pinnedMission, testUserID)
	ctx := context.Background()

	_, err := f.pinned().StartExecution(ctx, pinnedMission, testUserID, f.today())
	require.NoError(t, err)

	_, err = f.regular().StartExecution(ctx, regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrExecutionInProgress.Error())
}

func TestConcurrentStartsLeaveOneInProgress(t *testing.T) {
	f := newFixture(t)
	// without the lock only the storage constraint stands between the starts
	f.locker.disabled = true
	f.enroll(regularMission, testUserID)
	f.enroll(otherMission, testUserID)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for n, missionID := range []int64{regularMission, otherMission} {
		wg.Add(1)
		go func(n int, missionID int64) {
			defer wg.Done()
			_, errs[n] = f.regular().StartExecution(ctx, missionID, testUserID, f.today())
		}(n, missionID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorContains(t, err, ErrExecutionInProgress.Error())
	}
	assert.Equal(t, 1, succeeded)

	running, err := f.executions.ListExecutionsByUserAndDate(ctx, testUserID, f.today())
	require.NoError(t, err)
	inProgress := 0
	for _, execution := range running {
		if execution.Status == models.EXECUTION_STATUS_IN_PROGRESS {
			inProgress++
		}
	}
	assert.Equal(t, 1, inProgress)
}

func TestStartWhileUserLockHeld(t *testing.T) {
	f := newFixture(t)
	f.enroll(regularMission, testUserID)
	ctx := context.Background()

	release, err := f.locker.Lock(ctx, LockKeyUserExecution(testUserID))
	require.NoError(t, err)
	defer release()

	_, err = f.regular().StartExecution(ctx, regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrUserExecutionLock.Error())
	assert.Equal(t, 0, f.executions.count())
}

func TestStartWithoutParticipant(t *testing.T) {
	f := newFixture(t)
	left := f.enroll(otherMission, testUserID)
	left.Status = models.PARTICIPANT_STATUS_LEFT
	ctx := context.Background()

	_, err := f.regular().StartExecution(ctx, regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrParticipantNotFound.Error())

	_, err = f.regular().StartExecution(ctx, otherMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrParticipantNotFound.Error())
}

func TestSkipExecution(t *testing.T) {
	tests := []struct {
		name    string
		status  models.ExecutionStatus
		wantErr bool
	}{
		{"pending", models.EXECUTION_STATUS_PENDING, false},
		{"in progress", models.EXECUTION_STATUS_IN_PROGRESS, false},
		{"completed", models.EXECUTION_STATUS_COMPLETED, true},
		{"skipped", models.EXECUTION_STATUS_SKIPPED, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.enroll(regularMission, testUserID)
			execution := models.NewMissionExecution(p, f.today(), f.clock())
			execution.Status = tt.status
			f.executions.seed(execution)

			response, err := f.regular().SkipExecution(context.Background(), regularMission, testUserID, f.today())
			if tt.wantErr {
				assert.ErrorContains(t, err, models.ErrInvalidTransition.Error())
				assert.Equal(t, tt.status, f.executions.get(execution.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.EXECUTION_STATUS_SKIPPED, response.Status)
			assert.Equal(t, models.EXECUTION_STATUS_SKIPPED, f.executions.get(execution.ID).Status)
		})
	}
}

func TestSkipMissingExecution(t *testing.T) {
	f := newFixture(t)
	f.enroll(regularMission, testUserID)

	_, err := f.regular().SkipExecution(context.Background(), regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrExecutionNotFound.Error())
}

func seedCompleted(f *fixture, missionID int64, date time.Time, imageURL string) *models.MissionExecution {
	p := f.participant(missionID, testUserID)
	if p == nil {
		p = f.enroll(missionID, testUserID)
	}
	execution := models.NewMissionExecution(p, date, f.clock())
	execution.Status = models.EXECUTION_STATUS_COMPLETED
	execution.ExpEarned = missionReward
	execution.ImageURL = imageURL
	return f.executions.seed(execution)
}

func TestUploadImageRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	p := f.enroll(regularMission, testUserID)
	execution := models.NewMissionExecution(p, f.today(), f.clock())
	execution.Status = models.EXECUTION_STATUS_IN_PROGRESS
	f.executions.seed(execution)

	_, err := f.regular().UploadExecutionImage(context.Background(), regularMission, testUserID, f.today(), pngUpload(512))
	assert.ErrorContains(t, err, ErrExecutionNotCompleted.Error())
	assert.Empty(t, f.images.calls)
}

func TestUploadImageReplacesOldObject(t *testing.T) {
	f := newFixture(t)
	old := "https://cdn.test/missions/1/users/7/old.png"
	execution := seedCompleted(f, regularMission, f.today(), old)

	response, err := f.regular().UploadExecutionImage(context.Background(), regularMission, testUserID, f.today(), pngUpload(512))
	require.NoError(t, err)

	require.Len(t, f.images.calls, 2)
	assert.Equal(t, "delete:"+old, f.images.calls[0])
	assert.Equal(t, "store:"+response.ImageURL, f.images.calls[1])
	assert.NotEqual(t, old, response.ImageURL)
	assert.Equal(t, response.ImageURL, f.executions.get(execution.ID).ImageURL)
	assert.Equal(t, []string{LimitKeyImageUpload(testUserID)}, f.limiter.keys)
}

func TestUploadImageStoreFailureClearsURL(t *testing.T) {
	f := newFixture(t)
	old := "https://cdn.test/missions/1/users/7/old.png"
	execution := seedCompleted(f, regularMission, f.today(), old)
	f.images.storeErr = errors.New("bucket unavailable")

	_, err := f.regular().UploadExecutionImage(context.Background(), regularMission, testUserID, f.today(), pngUpload(512))
	assert.ErrorContains(t, err, "bucket unavailable")
	assert.Empty(t, f.executions.get(execution.ID).ImageURL)
}

func TestUploadImageValidation(t *testing.T) {
	f := newFixture(t)
	seedCompleted(f, regularMission, f.today(), "")
	f.config.values[CONFIG_IMAGE_MAX_SIZE_MB] = "1"
	ctx := context.Background()

	_, err := f.regular().UploadExecutionImage(ctx, regularMission, testUserID, f.today(), nil)
	assert.ErrorContains(t, err, ErrImageRequired.Error())

	pdf := pngUpload(512)
	pdf.ContentType = "application/pdf"
	_, err = f.regular().UploadExecutionImage(ctx, regularMission, testUserID, f.today(), pdf)
	assert.ErrorContains(t, err, ErrImageType.Error())

	large := pngUpload(512)
	large.Size = 2 << 20
	_, err = f.regular().UploadExecutionImage(ctx, regularMission, testUserID, f.today(), large)
	assert.ErrorContains(t, err, ErrImageTooLarge.Error())

	assert.Empty(t, f.images.calls)
}

func TestUploadImageRateLimited(t *testing.T) {
	f := newFixture(t)
	seedCompleted(f, regularMission, f.today(), "")
	f.limiter.err = limiter.ErrRateLimited

	_, err := f.regular().UploadExecutionImage(context.Background(), regularMission, testUserID, f.today(), pngUpload(512))
	assert.ErrorContains(t, err, limiter.ErrRateLimited.Error())
	assert.Empty(t, f.images.calls)
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t)
	old := "https://cdn.test/missions/1/users/7/old.png"
	execution := seedCompleted(f, regularMission, f.today(), old)

	response, err := f.regular().DeleteExecutionImage(context.Background(), regularMission, testUserID, f.today())
	require.NoError(t, err)
	assert.Empty(t, response.ImageURL)
	assert.Equal(t, []string{"delete:" + old}, f.images.calls)
	assert.Empty(t, f.executions.get(execution.ID).ImageURL)
}

func TestShareExecutionOnlyOnce(t *testing.T) {
	f := newFixture(t)
	execution := seedCompleted(f, regularMission, f.today(), "")
	ctx := context.Background()

	response, err := f.regular().ShareExecutionToFeed(ctx, regularMission, testUserID, f.today())
	require.NoError(t, err)
	require.NotNil(t, response.FeedID)
	assert.Equal(t, *response.FeedID, *f.executions.get(execution.ID).FeedID)

	_, err = f.regular().ShareExecutionToFeed(ctx, regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrExecutionAlreadyShared.Error())
	assert.Len(t, f.feed.shares, 1)
}

func TestShareRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	p := f.enroll(regularMission, testUserID)
	f.executions.seed(models.NewMissionExecution(p, f.today(), f.clock()))

	_, err := f.regular().ShareExecutionToFeed(context.Background(), regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, ErrExecutionNotCompleted.Error())
	assert.Empty(t, f.feed.shares)
}

func TestShareFeedFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	execution := seedCompleted(f, regularMission, f.today(), "")
	f.feed.err = errors.New("feed down")

	_, err := f.regular().ShareExecutionToFeed(context.Background(), regularMission, testUserID, f.today())
	assert.ErrorContains(t, err, "feed down")
	assert.Nil(t, f.executions.get(execution.ID).FeedID)
}

func TestGetExecutionByDate(t *testing.T) {
	f := newFixture(t)
	execution := seedCompleted(f, regularMission, f.today(), "")
	ctx := context.Background()

	response, err := f.regular().GetExecutionByDate(ctx, regularMission, testUserID, f.today().Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, execution.ID, response.ID)

	_, err = f.regular().GetExecutionByDate(ctx, regularMission, testUserID, f.today().AddDate(0, 0, -1))
	assert.ErrorContains(t, err, ErrExecutionNotFound.Error())
}
