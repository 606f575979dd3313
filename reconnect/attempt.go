// Copyright 2016 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrBackoff is returned by Controller.Begin when the caller must wait
// min_time_between_reconnects before starting another attempt.
var ErrBackoff = errors.New("reconnect: minimum time between reconnects not yet elapsed")

// ErrTooManyFailures is returned by Controller.Begin once
// max_consecutive_failures consecutive attempts have failed.
var ErrTooManyFailures = errors.New("reconnect: too many consecutive reconnect failures")

// Attempt tags one teacher/learner run with a stable identifier, threaded
// through every log line and wrapped error for that run.
type Attempt struct {
	ID    uuid.UUID
	Round int64
}

// newAttempt mints an Attempt for round, logging its start.
func newAttempt(round int64) Attempt {
	a := Attempt{ID: uuid.New(), Round: round}
	glog.Infof("reconnect: attempt %s starting for round %d", a.ID, a.Round)
	return a
}

// Controller enforces the reconnect.max_consecutive_failures and
// reconnect.min_time_between_reconnects settings (spec §6) across a
// sequence of attempts for one peer.
type Controller struct {
	cfg Config
	now func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	lastAttemptEnd      time.Time
}

// NewController builds a Controller from cfg. The clock is
// injectable so tests don't depend on wall time.
func NewController(cfg Config, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{cfg: cfg, now: now}
}

// Begin starts a new attempt for round, or refuses with ErrBackoff or
// ErrTooManyFailures if the controller's limits forbid it.
func (c *Controller) Begin(round int64) (Attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxConsecutiveFailures > 0 && c.consecutiveFailures >= c.cfg.MaxConsecutiveFailures {
		return Attempt{}, fmt.Errorf("%w: %d consecutive failures", ErrTooManyFailures, c.consecutiveFailures)
	}
	if !c.lastAttemptEnd.IsZero() {
		if elapsed := c.now().Sub(c.lastAttemptEnd); elapsed < c.cfg.MinTimeBetweenReconnects {
			return Attempt{}, fmt.Errorf("%w: %s remaining", ErrBackoff, c.cfg.MinTimeBetweenReconnects-elapsed)
		}
	}
	return newAttempt(round), nil
}

// Finish records the outcome of attempt, resetting or advancing the
// consecutive-failure count and the backoff clock.
func (c *Controller) Finish(attempt Attempt, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastAttemptEnd = c.now()
	if err != nil {
		c.consecutiveFailures++
		glog.Errorf("reconnect: attempt %s for round %d failed (%d consecutive): %v", attempt.ID, attempt.Round, c.consecutiveFailures, err)
		return
	}
	if c.consecutiveFailures != 0 {
		glog.Infof("reconnect: attempt %s for round %d succeeded, resetting failure count", attempt.ID, attempt.Round)
	}
	c.consecutiveFailures = 0
}

// ConsecutiveFailures reports the controller's current streak.
func (c *Controller) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveFailures
}

// Run executes one teacher/learner pairing under ctx, cancelling the
// other side as soon as either fails, and tagging any error with the
// attempt's identifier. It does not itself retry; callers loop over
// Begin/Run/Finish.
func Run(ctx context.Context, attempt Attempt, teacher *Teacher, learner *Learner) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return teacher.Run(gctx) })
	g.Go(func() error { return learner.Run(gctx) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("reconnect: attempt %s: %w", attempt.ID, err)
	}
	return nil
}
