package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sofmeright/edgefreight/src/logging"
)

// ErrDeploymentSubmitFailed is matched by every SubmitError.
var ErrDeploymentSubmitFailed = errors.New("deployment submit failed")

// SubmitError reports a failed deployment create.
type SubmitError struct {
	HubName      string
	DeploymentID string
	Err          error
}

// Error implements the error interface.
func (e *SubmitError) Error() string {
	return fmt.Sprintf("creating deployment %q on hub %q: %v", e.DeploymentID, e.HubName, e.Err)
}

// Is matches ErrDeploymentSubmitFailed.
func (e *SubmitError) Is(target error) bool {
	return target == ErrDeploymentSubmitFailed
}

// Unwrap returns the hub error.
func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Submission is one deployment to put on a hub.
type Submission struct {
	HubName      string
	DeploymentID string
	ContentPath  string
	Target       Target
	Priority     int
}

// DeleteResult is the state a delete left the hub in.
type DeleteResult int

const (
	DeleteRemoved DeleteResult = iota // an existing deployment was removed
	DeleteAbsent                      // there was nothing to remove
)

func (r DeleteResult) String() string {
	if r == DeleteAbsent {
		return "absent"
	}
	return "removed"
}

// Submitter puts deployments on a hub.
type Submitter struct {
	Hub    Hub
	Logger log.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(hub Hub, logger log.Logger) *Submitter {
	return &Submitter{Hub: hub, Logger: logging.OrNop(logger)}
}

// Submit replaces any deployment with the same id. The hub has no upsert,
// so an existing deployment is deleted first; running Submit twice with the
// same input leaves one deployment. A delete failure other than not-found
// aborts before anything is created.
func (s *Submitter) Submit(ctx context.Context, sub Submission) (DeleteResult, error) {
	logger := logging.OrNop(s.Logger)

	deleted, err := s.deleteExisting(ctx, sub.HubName, sub.DeploymentID)
	if err != nil {
		return deleted, fmt.Errorf("removing existing deployment %q: %w", sub.DeploymentID, err)
	}
	level.Debug(logger).Log("msg", "previous deployment", "id", sub.DeploymentID, "state", deleted)

	d := Deployment{
		HubName:         sub.HubName,
		ID:              sub.DeploymentID,
		ContentPath:     sub.ContentPath,
		TargetCondition: sub.Target.Condition(),
		Priority:        sub.Priority,
	}
	if err := s.Hub.CreateDeployment(ctx, d); err != nil {
		return deleted, &SubmitError{HubName: sub.HubName, DeploymentID: sub.DeploymentID, Err: err}
	}

	level.Info(logger).Log("msg", "deployment created", "hub", d.HubName, "id", d.ID,
		"target", d.TargetCondition, "priority", d.Priority)
	return deleted, nil
}

func (s *Submitter) deleteExisting(ctx context.Context, hubName, id string) (DeleteResult, error) {
	err := s.Hub.DeleteDeployment(ctx, hubName, id)
	switch {
	case err == nil:
		return DeleteRemoved, nil
	case errors.Is(err, ErrDeploymentNotFound):
		return DeleteAbsent, nil
	default:
		return DeleteRemoved, err
	}
}
