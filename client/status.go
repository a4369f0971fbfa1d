package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xraph/await"
	"github.com/xraph/await/poll"
	"github.com/xraph/await/wire"
)

// Compile-time interface check: a Client is a status source.
var _ poll.StatusSource = (*Client)(nil)

// GetStatus implements poll.StatusSource. Server-side faults and
// transport errors are marked transient so the scheduler retries them
// inside its failure budget; a definitive "not found" is permanent.
func (c *Client) GetStatus(ctx context.Context, id await.Identity) (*await.RunStatus, error) {
	resp, err := c.request(ctx, wire.MethodRunStatus, wire.RunStatusRequest{
		JobID: id.JobID,
		RunID: id.RunID,
	})
	if err != nil {
		return nil, classify(err)
	}

	var payload wire.RunStatusResponse
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, fmt.Errorf("await/client: unmarshal status response: %w", err)
	}
	return &await.RunStatus{
		Identity: id,
		State:    payload.State,
		Output:   payload.Output,
		Error:    payload.Error,
	}, nil
}

// Cancel implements poll.StatusSource. A platform answer of "not found"
// or "already finished" means the run completed before the cancel
// landed; that race reports false with no error.
func (c *Client) Cancel(ctx context.Context, id await.Identity) (bool, error) {
	resp, err := c.request(ctx, wire.MethodRunCancel, wire.RunCancelRequest{
		JobID: id.JobID,
		RunID: id.RunID,
	})
	if err != nil {
		var we *wire.Error
		if errors.As(err, &we) && (we.Code == wire.ErrCodeNotFound || we.Code == wire.ErrCodeConflict) {
			return false, nil
		}
		return false, err
	}

	var payload wire.RunCancelResponse
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return false, fmt.Errorf("await/client: unmarshal cancel response: %w", err)
	}
	return payload.Cancelled, nil
}

// classify decides whether a request error is worth retrying. Protocol
// errors below 500 are definitive; everything else — 5xx answers,
// connection faults, per-fetch deadline expiry — is transient.
func classify(err error) error {
	var we *wire.Error
	if errors.As(err, &we) {
		if we.Code >= wire.ErrCodeInternal {
			return poll.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return poll.Transient(err)
}
