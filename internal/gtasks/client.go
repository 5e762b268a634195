// Package gtasks adapts the Google Tasks v1 API to service.TaskProvider.
package gtasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/vipul43/privatezone/internal/retry"
	"github.com/vipul43/privatezone/internal/service"
)

const (
	defaultList = "@default"
	pageSize    = 100
)

type Client struct {
	opts   []option.ClientOption
	retry  retry.Policy
	logger *zap.Logger
}

func NewClient(logger *zap.Logger, opts ...option.ClientOption) *Client {
	return &Client{
		opts:   opts,
		retry:  retry.Default,
		logger: logger,
	}
}

func (c *Client) service(ctx context.Context, accessToken string) (*tasks.Service, error) {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, c.opts...)

	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tasks service: %w", err)
	}
	return svc, nil
}

// ListTasks returns every task on the default list, completed ones included
func (c *Client) ListTasks(ctx context.Context, accessToken string) ([]service.RemoteTask, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var out []service.RemoteTask
	pageToken := ""
	for {
		call := svc.Tasks.List(defaultList).
			MaxResults(pageSize).
			ShowCompleted(true).
			ShowHidden(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *tasks.Tasks
		err := c.retry.Do(ctx, func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, classify("list tasks", err)
		}

		for _, t := range resp.Items {
			out = append(out, toRemote(t))
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	c.logger.Debug("google tasks fetched", zap.Int("count", len(out)))
	return out, nil
}

// InsertTask creates task on the default list
func (c *Client) InsertTask(ctx context.Context, accessToken string, task service.RemoteTask) (*service.RemoteTask, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	body := &tasks.Task{
		Title:  task.Title,
		Notes:  task.Notes,
		Status: task.Status,
		Due:    task.Due,
	}
	if task.Completed != "" {
		body.Completed = &task.Completed
	}

	var created *tasks.Task
	err = c.retry.Do(ctx, func() error {
		var err error
		created, err = svc.Tasks.Insert(defaultList, body).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify("insert task", err)
	}

	remote := toRemote(created)
	return &remote, nil
}

func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s rejected the access token", service.ErrReauthorizationRequired, op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func toRemote(t *tasks.Task) service.RemoteTask {
	remote := service.RemoteTask{
		ID:     t.Id,
		Title:  t.Title,
		Notes:  t.Notes,
		Status: t.Status,
		Due:    t.Due,
	}
	if t.Completed != nil {
		remote.Completed = *t.Completed
	}
	return remote
}
