package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
)

// SchedulerAPI is the subset of the EventBridge Scheduler client in use.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, in *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	UpdateSchedule(ctx context.Context, in *scheduler.UpdateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.UpdateScheduleOutput, error)
}

// EventBridge registers one-time at() schedules whose target receives the
// job payload as its input.
type EventBridge struct {
	client    SchedulerAPI
	group     string
	targetARN string
	roleARN   string
}

func NewEventBridge(client SchedulerAPI, group, targetARN, roleARN string) *EventBridge {
	if group == "" {
		group = "default"
	}
	return &EventBridge{client: client, group: group, targetARN: targetARN, roleARN: roleARN}
}

// Register creates the schedule, or updates it when the name is already taken.
func (b *EventBridge) Register(ctx context.Context, job Job) error {
	input, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode schedule payload: %w", err)
	}
	target := &types.Target{
		Arn:     aws.String(b.targetARN),
		RoleArn: aws.String(b.roleARN),
		Input:   aws.String(string(input)),
	}
	window := &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff}
	expr := AtExpression(job.FireAt)

	_, err = b.client.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:                       aws.String(job.Name),
		GroupName:                  aws.String(b.group),
		ScheduleExpression:         aws.String(expr),
		ScheduleExpressionTimezone: aws.String("UTC"),
		FlexibleTimeWindow:         window,
		Target:                     target,
		State:                      types.ScheduleStateEnabled,
		ActionAfterCompletion:      types.ActionAfterCompletionDelete,
	})
	if err == nil {
		return nil
	}
	var conflict *types.ConflictException
	if !errors.As(err, &conflict) {
		return fmt.Errorf("create schedule %s: %w", job.Name, err)
	}

	_, err = b.client.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
		Name:                       aws.String(job.Name),
		GroupName:                  aws.String(b.group),
		ScheduleExpression:         aws.String(expr),
		ScheduleExpressionTimezone: aws.String("UTC"),
		FlexibleTimeWindow:         window,
		Target:                     target,
		State:                      types.ScheduleStateEnabled,
		ActionAfterCompletion:      types.ActionAfterCompletionDelete,
	})
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", job.Name, err)
	}
	return nil
}
