package adapter

import (
	"context"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// ExecuteTask drives a task through the adapter. Adapters implementing
// TaskHandler are called directly; otherwise the task is bridged through
// HandleMessage: the reply content becomes a single-part artifact, the reply
// is recorded in history and the task completes.
//
// A handler error fails the task (error text in status.message) and is
// returned alongside the failed task so callers can still serve it.
func ExecuteTask(ctx context.Context, a MessageHandler, task *a2a.Task) (*a2a.Task, error) {
	if task.Status.State.Terminal() {
		return task, nil
	}

	if th, ok := a.(TaskHandler); ok {
		result, err := th.HandleTask(ctx, task)
		if err != nil {
			task.Fail(err.Error())
			return task, err
		}
		// input-required is a pause, not an omission: leave it alone.
		if !result.Status.State.Terminal() && result.Status.State != a2a.TaskStateInputRequired {
			_ = result.SetState(a2a.TaskStateCompleted)
		}
		return result, nil
	}

	request, err := task.RequestMessage()
	if err != nil {
		task.Fail(err.Error())
		return task, err
	}

	_ = task.SetState(a2a.TaskStateWaiting)

	reply, err := a.HandleMessage(ctx, request)
	if err != nil {
		task.Fail(err.Error())
		return task, err
	}

	task.AppendHistory(reply)
	task.AddArtifact(a2a.Artifact{Parts: []a2a.Part{reply.Content.ToPart()}})
	if reply.Content.Kind == a2a.ContentKindError {
		task.Fail(reply.Content.Message)
	} else {
		_ = task.SetState(a2a.TaskStateCompleted)
	}
	return task, nil
}

// SubscribeTask turns any adapter into a task-update stream. Preference
// order: a native TaskSubscriber, then a Streamer whose parts are folded
// into a growing artifact, then a one-shot ExecuteTask emitting a single
// terminal snapshot.
//
// The returned channel closes after the terminal snapshot. The caller owns
// ctx; cancelling it stops the producer.
func SubscribeTask(ctx context.Context, a MessageHandler, task *a2a.Task) (<-chan *a2a.Task, error) {
	if ts, ok := a.(TaskSubscriber); ok {
		return ts.SendSubscribe(ctx, task)
	}

	if streamer, ok := a.(Streamer); ok {
		return subscribeViaStreamer(ctx, streamer, task)
	}

	out := make(chan *a2a.Task, 1)
	go func() {
		defer close(out)
		result, _ := ExecuteTask(ctx, a, task)
		select {
		case out <- result.Clone():
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func subscribeViaStreamer(ctx context.Context, streamer Streamer, task *a2a.Task) (<-chan *a2a.Task, error) {
	request, err := task.RequestMessage()
	if err != nil {
		task.Fail(err.Error())
		out := make(chan *a2a.Task, 1)
		out <- task.Clone()
		close(out)
		return out, nil
	}

	parts, err := streamer.StreamResponse(ctx, request)
	if err != nil {
		task.Fail(err.Error())
		out := make(chan *a2a.Task, 1)
		out <- task.Clone()
		close(out)
		return out, nil
	}

	out := make(chan *a2a.Task)
	go func() {
		defer close(out)

		_ = task.SetState(a2a.TaskStateWaiting)
		artifact := a2a.Artifact{}

		emit := func(t *a2a.Task) bool {
			select {
			case out <- t:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case part, ok := <-parts:
				if !ok {
					if len(artifact.Parts) > 0 {
						task.AddArtifact(artifact)
					}
					if !task.Status.State.Terminal() {
						_ = task.SetState(a2a.TaskStateCompleted)
					}
					emit(task.Clone())
					return
				}
				artifact.Parts = append(artifact.Parts, part)
				snapshot := task.Clone()
				snapshot.Artifacts = append(snapshot.Artifacts, artifact)
				if !emit(snapshot) {
					return
				}
			}
		}
	}()
	return out, nil
}
