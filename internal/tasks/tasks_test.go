package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

type fakeTaskClient struct {
	req *cloudtaskspb.CreateTaskRequest
	err error
}

func (f *fakeTaskClient) CreateTask(_ context.Context, req *cloudtaskspb.CreateTaskRequest) (*cloudtaskspb.Task, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &cloudtaskspb.Task{Name: req.Parent + "/tasks/123"}, nil
}

func (f *fakeTaskClient) Close() error { return nil }

func TestCloudTasksDispatcherBuildsHTTPTask(t *testing.T) {
	fake := &fakeTaskClient{}
	cfg := config.TasksConfig{Project: "proj", Location: "us-central1", Queue: "studybuddy-jobs"}
	d := newCloudTasksDispatcher(fake, cfg, "https://api.example.com/", "secret-token", zap.NewNop())

	payload, err := NewPayload("job-1", "chunk_material", map[string]string{"materialId": "m1"})
	require.NoError(t, err)

	name, err := d.Enqueue(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "projects/proj/locations/us-central1/queues/studybuddy-jobs/tasks/123", name)

	httpReq := fake.req.GetTask().GetHttpRequest()
	require.NotNil(t, httpReq)
	assert.Equal(t, cloudtaskspb.HttpMethod_POST, httpReq.GetHttpMethod())
	assert.Equal(t, "https://api.example.com/internal/jobs/chunk_material", httpReq.GetUrl())
	assert.Equal(t, "secret-token", httpReq.GetHeaders()[InternalTokenHeader])

	var body map[string]any
	require.NoError(t, json.Unmarshal(httpReq.GetBody(), &body))
	assert.Equal(t, "job-1", body["jobId"])
	assert.Equal(t, "chunk_material", body["jobType"])
	assert.Equal(t, map[string]any{"materialId": "m1"}, body["data"])
}

func TestCloudTasksDispatcherError(t *testing.T) {
	fake := &fakeTaskClient{err: errors.New("quota")}
	d := newCloudTasksDispatcher(fake, config.TasksConfig{}, "http://x", "", zap.NewNop())
	_, err := d.Enqueue(context.Background(), JobPayload{JobID: "j", JobType: "extract_topics"})
	assert.Error(t, err)
	_, hasToken := fake.req.GetTask().GetHttpRequest().GetHeaders()[InternalTokenHeader]
	assert.False(t, hasToken)
}

func TestRedisDispatcherAndWorker(t *testing.T) {
	mr, rdb := setupTestRedis(t)

	d := NewRedisDispatcher(rdb, "jobs")
	name, err := d.Enqueue(context.Background(), JobPayload{JobID: "j1", JobType: "grade_exam", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "redis-task-j1", name)
	assert.True(t, mr.Exists("jobs"))

	got := make(chan JobPayload, 1)
	w := NewWorker(rdb, "jobs", HandlerFunc(func(_ context.Context, p JobPayload) error {
		got <- p
		return errors.New("handler errors are only logged")
	}), zap.NewNop())
	w.PollTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	select {
	case p := <-got:
		assert.Equal(t, "j1", p.JobID)
		assert.Equal(t, "grade_exam", p.JobType)
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not deliver the job")
	}
	cancel()
	<-done
}

func TestInlineDispatcher(t *testing.T) {
	d := NewInlineDispatcher(zap.NewNop())
	_, err := d.Enqueue(context.Background(), JobPayload{JobID: "j"})
	require.Error(t, err, "no handler bound")

	var mu sync.Mutex
	var seen []string
	d.Bind(HandlerFunc(func(ctx context.Context, p JobPayload) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mu.Lock()
		seen = append(seen, p.JobID)
		mu.Unlock()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	name, err := d.Enqueue(ctx, JobPayload{JobID: "j2"})
	cancel()
	require.NoError(t, err)
	assert.Equal(t, "inline-task-j2", name)

	d.Wait()
	assert.Equal(t, []string{"j2"}, seen)
}

func TestNewSelectsBackend(t *testing.T) {
	_, rdb := setupTestRedis(t)
	cfg := &config.Config{Tasks: config.TasksConfig{Backend: "redis", RedisKey: "k"}}
	d, err := New(context.Background(), cfg, rdb, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisDispatcher{}, d)

	cfg.Tasks.Backend = "inline"
	d, err = New(context.Background(), cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &InlineDispatcher{}, d)

	cfg.Tasks.Backend = "redis"
	_, err = New(context.Background(), cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
