package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
	"github.com/harishm17/study-buddy-sub001/internal/testhelpers"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	payloads []tasks.JobPayload
	err      error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, p tasks.JobPayload) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.payloads = append(d.payloads, p)
	return "test-task-" + p.JobID, nil
}

func newTestService(t *testing.T) (*Service, *repositories.JobRepository, *recordingDispatcher) {
	t.Helper()
	repo := &repositories.JobRepository{DB: testhelpers.SetupTestDB(t)}
	dispatcher := &recordingDispatcher{}
	locker := NewMemoryLocker(time.Minute)
	t.Cleanup(locker.Stop)
	return NewService(repo, dispatcher, locker, 10*time.Minute, time.Second, zap.NewNop()), repo, dispatcher
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint("u1", models.JobGenerateContent, map[string]any{"topicId": "t", "contentType": "topic_quiz"}, "")
	require.NoError(t, err)
	b, err := Fingerprint("u1", models.JobGenerateContent, map[string]any{"contentType": "topic_quiz", "topicId": "t"}, "")
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not matter")
	assert.Len(t, a, 64)

	type input struct {
		TopicID     string `json:"topicId"`
		ContentType string `json:"contentType"`
	}
	c, err := Fingerprint("u1", models.JobGenerateContent, input{TopicID: "t", ContentType: "topic_quiz"}, "")
	require.NoError(t, err)
	assert.Equal(t, a, c, "structs and maps with the same JSON are equal")

	for name, other := range map[string]func() (string, error){
		"user":       func() (string, error) { return Fingerprint("u2", models.JobGenerateContent, map[string]any{"topicId": "t", "contentType": "topic_quiz"}, "") },
		"type":       func() (string, error) { return Fingerprint("u1", models.JobGenerateExam, map[string]any{"topicId": "t", "contentType": "topic_quiz"}, "") },
		"input":      func() (string, error) { return Fingerprint("u1", models.JobGenerateContent, map[string]any{"topicId": "x", "contentType": "topic_quiz"}, "") },
		"client key": func() (string, error) { return Fingerprint("u1", models.JobGenerateContent, map[string]any{"topicId": "t", "contentType": "topic_quiz"}, "abc") },
	} {
		got, err := other()
		require.NoError(t, err)
		assert.NotEqualf(t, a, got, "changing %s must change the key", name)
	}

	_, err = Fingerprint("u1", models.JobGenerateContent, func() {}, "")
	assert.Error(t, err)
}

func TestMemoryLocker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ml := NewMemoryLocker(10 * time.Millisecond)
	defer ml.Stop()

	release, ok, err := ml.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = ml.Acquire(context.Background(), "k", time.Minute)
	assert.False(t, ok, "held lock cannot be taken")

	release()
	release2, ok, _ := ml.Acquire(context.Background(), "k", time.Minute)
	assert.True(t, ok)
	release2()

	_, ok, _ = ml.Acquire(context.Background(), "expiring", time.Millisecond)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return ml.Size() == 0 }, time.Second, 10*time.Millisecond)

	ml.Stop()
	ml.Stop()
}

func TestRedisLocker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLocker(rdb)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("studybuddy:joblock:k"))

	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("studybuddy:joblock:k"))

	_, ok, _ = l.Acquire(ctx, "ttl", time.Second)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)
	_, ok, _ = l.Acquire(ctx, "ttl", time.Second)
	assert.True(t, ok, "lock expires with its ttl")
}

func TestSubmitDeduplicates(t *testing.T) {
	svc, repo, dispatcher := newTestService(t)
	ctx := context.Background()
	req := SubmitRequest{
		UserID:    "u1",
		ProjectID: "p1",
		JobType:   models.JobExtractTopics,
		Input:     map[string]string{"projectId": "p1"},
	}

	first, dedup, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.Equal(t, "test-task-"+first.ID, first.TaskName)
	require.Len(t, dispatcher.payloads, 1)
	assert.Equal(t, "extract_topics", dispatcher.payloads[0].JobType)
	assert.JSONEq(t, `{"projectId":"p1"}`, string(dispatcher.payloads[0].Data))

	second, dedup, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, dedup, "pending job is reused")
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, dispatcher.payloads, 1)

	require.NoError(t, repo.MarkProcessing(ctx, first.ID))
	require.NoError(t, repo.Complete(ctx, first.ID, nil))
	third, dedup, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, dedup, "recently completed job is reused")
	assert.Equal(t, first.ID, third.ID)

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	fourth, dedup, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.False(t, dedup, "completed job outside the window is not reused")
	assert.NotEqual(t, first.ID, fourth.ID)
}

func TestSubmitFailedJobsNeverDedupe(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	req := SubmitRequest{UserID: "u1", JobType: models.JobGradeExam, Input: map[string]string{"submissionId": "s"}}

	first, _, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, first.ID, "boom"))

	second, dedup, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmitClientKeySeparatesJobs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := SubmitRequest{UserID: "u1", JobType: models.JobGenerateExam, Input: map[string]any{"projectId": "p"}}

	a, _, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	req.ClientKey = "retry-1"
	b, dedup, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.False(t, dedup)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubmitEnqueueFailureMarksJobFailed(t *testing.T) {
	svc, repo, dispatcher := newTestService(t)
	dispatcher.err = errors.New("queue down")

	_, _, err := svc.Submit(context.Background(), SubmitRequest{UserID: "u1", ProjectID: "p1", JobType: models.JobChunkMaterial, Input: map[string]string{"materialId": "m"}})
	require.Error(t, err)

	failed, err := repo.ListByProject(context.Background(), "p1", models.JobFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage, "queue down")
}

func TestSubmitRejectsUnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.Submit(context.Background(), SubmitRequest{UserID: "u", JobType: "nope"})
	assert.Error(t, err)
}

func TestSubmitBusyWhenLockHeld(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.lockTTL = 100 * time.Millisecond
	req := SubmitRequest{UserID: "u", JobType: models.JobExtractTopics, Input: map[string]string{"projectId": "p"}}

	key, err := Fingerprint(req.UserID, req.JobType, req.Input, "")
	require.NoError(t, err)
	_, ok, _ := svc.locker.Acquire(context.Background(), key, time.Minute)
	require.True(t, ok)

	_, _, err = svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestProcessorLifecycle(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	repo := &repositories.JobRepository{DB: db}
	ctx := context.Background()

	p := NewProcessor(repo, zap.NewNop())
	p.Register(models.JobGenerateContent, func(_ context.Context, job *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error) {
		var in struct {
			TopicID string `json:"topicId"`
		}
		if err := decodeInput(data, &in); err != nil {
			return nil, err
		}
		progress(30)
		return map[string]string{"topic": in.TopicID}, nil
	})
	p.Register(models.JobGradeExam, func(context.Context, *models.ProcessingJob, json.RawMessage, Progress) (any, error) {
		return nil, errors.New("grader exploded")
	})
	p.Register(models.JobGenerateExam, func(context.Context, *models.ProcessingJob, json.RawMessage, Progress) (any, error) {
		panic("bad state")
	})

	t.Run("completes", func(t *testing.T) {
		job := &models.ProcessingJob{UserID: "u", JobType: models.JobGenerateContent, InputData: []byte(`{"topicId":"t1"}`)}
		require.NoError(t, repo.Create(ctx, job))

		require.NoError(t, p.Handle(ctx, tasks.JobPayload{JobID: job.ID, JobType: string(job.JobType)}))
		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobCompleted, got.Status)
		assert.Equal(t, 100, got.ProgressPercent)
		assert.JSONEq(t, `{"topic":"t1"}`, string(got.ResultData))
		assert.NotNil(t, got.StartedAt)
		assert.NotNil(t, got.CompletedAt)

		require.NoError(t, p.Handle(ctx, tasks.JobPayload{JobID: job.ID}), "redelivery is a no-op")
	})

	t.Run("fails", func(t *testing.T) {
		job := &models.ProcessingJob{UserID: "u", JobType: models.JobGradeExam}
		require.NoError(t, repo.Create(ctx, job))
		require.Error(t, p.Handle(ctx, tasks.JobPayload{JobID: job.ID}))
		got, _ := repo.Get(ctx, job.ID)
		assert.Equal(t, models.JobFailed, got.Status)
		assert.Equal(t, "grader exploded", got.ErrorMessage)
	})

	t.Run("recovers panics", func(t *testing.T) {
		job := &models.ProcessingJob{UserID: "u", JobType: models.JobGenerateExam}
		require.NoError(t, repo.Create(ctx, job))
		require.Error(t, p.Handle(ctx, tasks.JobPayload{JobID: job.ID}))
		got, _ := repo.Get(ctx, job.ID)
		assert.Equal(t, models.JobFailed, got.Status)
		assert.Contains(t, got.ErrorMessage, "bad state")
	})

	t.Run("unregistered type", func(t *testing.T) {
		job := &models.ProcessingJob{UserID: "u", JobType: models.JobChunkMaterial}
		require.NoError(t, repo.Create(ctx, job))
		require.Error(t, p.Handle(ctx, tasks.JobPayload{JobID: job.ID}))
		got, _ := repo.Get(ctx, job.ID)
		assert.Equal(t, models.JobFailed, got.Status)
	})

	t.Run("missing job", func(t *testing.T) {
		assert.Error(t, p.Handle(ctx, tasks.JobPayload{JobID: "missing"}))
	})

	t.Run("timed out while running", func(t *testing.T) {
		p.Register(models.JobExtractTopics, func(ctx context.Context, job *models.ProcessingJob, _ json.RawMessage, _ Progress) (any, error) {
			_, err := repo.SweepStale(ctx, time.Now().Add(time.Minute), "job timed out")
			return map[string]bool{"late": true}, err
		})
		job := &models.ProcessingJob{UserID: "u", JobType: models.JobExtractTopics}
		require.NoError(t, repo.Create(ctx, job))

		require.NoError(t, p.Handle(ctx, tasks.JobPayload{JobID: job.ID}))
		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobFailed, got.Status)
		assert.Equal(t, "job timed out", got.ErrorMessage)
		assert.Empty(t, got.ResultData)
	})
}

func TestStaleJobSweeper(t *testing.T) {
	repo := &repositories.JobRepository{DB: testhelpers.SetupTestDB(t)}
	ctx := context.Background()

	stale := &models.ProcessingJob{UserID: "u", JobType: models.JobChunkMaterial, Status: models.JobProcessing}
	done := &models.ProcessingJob{UserID: "u", JobType: models.JobChunkMaterial, Status: models.JobCompleted}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, done))

	sweeper := NewStaleJobSweeper(repo, 30*time.Minute, "*/5 * * * *", zap.NewNop())

	n, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh jobs are left alone")

	sweeper.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	n, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ := repo.Get(ctx, stale.ID)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "job timed out", got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)

	got, _ = repo.Get(ctx, done.ID)
	assert.Equal(t, models.JobCompleted, got.Status)
}

func TestStaleJobSweeperSchedule(t *testing.T) {
	repo := &repositories.JobRepository{DB: testhelpers.SetupTestDB(t)}
	bad := NewStaleJobSweeper(repo, time.Minute, "not a schedule", zap.NewNop())
	assert.Error(t, bad.Start())

	s := NewStaleJobSweeper(repo, time.Minute, "*/5 * * * *", zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()
}
