package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

// InternalTokenHeader authenticates task deliveries to the internal job routes.
const InternalTokenHeader = "X-Internal-Token"

// content generation can take minutes, Cloud Tasks defaults to 10
const dispatchDeadline = 15 * time.Minute

type taskCreator interface {
	CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest) (*cloudtaskspb.Task, error)
	Close() error
}

type gcpTaskClient struct {
	client *cloudtasks.Client
}

func (c *gcpTaskClient) CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest) (*cloudtaskspb.Task, error) {
	return c.client.CreateTask(ctx, req)
}

func (c *gcpTaskClient) Close() error { return c.client.Close() }

type CloudTasksDispatcher struct {
	client        taskCreator
	queuePath     string
	serviceURL    string
	internalToken string
	logger        *zap.Logger
}

func NewCloudTasksDispatcher(ctx context.Context, cfg config.TasksConfig, serviceURL, internalToken string, logger *zap.Logger) (*CloudTasksDispatcher, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create cloud tasks client: %w", err)
	}
	return newCloudTasksDispatcher(&gcpTaskClient{client: client}, cfg, serviceURL, internalToken, logger), nil
}

func newCloudTasksDispatcher(client taskCreator, cfg config.TasksConfig, serviceURL, internalToken string, logger *zap.Logger) *CloudTasksDispatcher {
	return &CloudTasksDispatcher{
		client:        client,
		queuePath:     fmt.Sprintf("projects/%s/locations/%s/queues/%s", cfg.Project, cfg.Location, cfg.Queue),
		serviceURL:    strings.TrimRight(serviceURL, "/"),
		internalToken: internalToken,
		logger:        logger,
	}
}

func (d *CloudTasksDispatcher) Enqueue(ctx context.Context, payload JobPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode task payload: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if d.internalToken != "" {
		headers[InternalTokenHeader] = d.internalToken
	}

	req := &cloudtaskspb.CreateTaskRequest{
		Parent: d.queuePath,
		Task: &cloudtaskspb.Task{
			DispatchDeadline: durationpb.New(dispatchDeadline),
			MessageType: &cloudtaskspb.Task_HttpRequest{
				HttpRequest: &cloudtaskspb.HttpRequest{
					HttpMethod: cloudtaskspb.HttpMethod_POST,
					Url:        d.serviceURL + JobEndpoint(payload.JobType),
					Headers:    headers,
					Body:       body,
				},
			},
		},
	}

	task, err := d.client.CreateTask(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create cloud task for job %s: %w", payload.JobID, err)
	}
	d.logger.Info("Created Cloud Task", zap.String("task", task.GetName()), zap.String("job_id", payload.JobID))
	return task.GetName(), nil
}

func (d *CloudTasksDispatcher) Close() error { return d.client.Close() }
