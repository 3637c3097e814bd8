/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package notify

import (
	"context"
	"sync"
	"time"

	"flowos.app/flowsync/internal/models"
	"go.uber.org/zap"
)

// SessionDelays are measured from session start.
type SessionDelays struct {
	Insight         time.Duration
	Advice          time.Duration
	PodcastInterval time.Duration
}

func DefaultSessionDelays() SessionDelays {
	return SessionDelays{
		Insight:         2 * time.Hour,
		Advice:          4 * time.Hour,
		PodcastInterval: 6 * time.Hour,
	}
}

// Session runs one user's emission timers until stopped.
type Session struct {
	UserID    string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels all pending timers and waits for the session loop to exit.
// It is safe to call more than once.
func (s *Session) Stop() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// StartSession runs the affirmation and commitment checks immediately, then
// the insight and advice checks after their delays and the podcast check on
// every interval. A running session for the same user is stopped first, so
// the delays start over.
func (sc *Scheduler) StartSession(ctx context.Context, userID string) *Session {
	sc.sessMu.Lock()
	defer sc.sessMu.Unlock()

	if old, ok := sc.sessions[userID]; ok {
		old.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		UserID:    userID,
		StartedAt: sc.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	sc.sessions[userID] = s
	go sc.runSession(ctx, s, sc.delays)

	sc.logger.Info("Started notification session", zap.String("userID", userID))
	return s
}

// StopSession stops the user's session. It reports whether one was running.
func (sc *Scheduler) StopSession(userID string) bool {
	sc.sessMu.Lock()
	s, ok := sc.sessions[userID]
	delete(sc.sessions, userID)
	sc.sessMu.Unlock()

	if !ok {
		return false
	}
	s.Stop()
	sc.logger.Info("Stopped notification session", zap.String("userID", userID))
	return true
}

// Shutdown stops every session.
func (sc *Scheduler) Shutdown() {
	sc.sessMu.Lock()
	sessions := sc.sessions
	sc.sessions = make(map[string]*Session)
	sc.sessMu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}

func (sc *Scheduler) runSession(ctx context.Context, s *Session, d SessionDelays) {
	defer close(s.done)

	sc.runCheck(ctx, s.UserID, "affirmation", func(now time.Time) error {
		_, err := sc.MaybeEmit(ctx, s.UserID, models.CategoryAffirmation, now)
		return err
	})
	sc.runCheck(ctx, s.UserID, "commitments", func(now time.Time) error {
		_, err := sc.CheckCommitments(ctx, s.UserID, now)
		return err
	})

	insight := time.NewTimer(d.Insight)
	defer insight.Stop()
	advice := time.NewTimer(d.Advice)
	defer advice.Stop()
	podcast := time.NewTicker(d.PodcastInterval)
	defer podcast.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-insight.C:
			sc.runCheck(ctx, s.UserID, "insight", func(now time.Time) error {
				_, err := sc.MaybeEmit(ctx, s.UserID, models.CategoryInsight, now)
				return err
			})
		case <-advice.C:
			sc.runCheck(ctx, s.UserID, "advice", func(now time.Time) error {
				_, err := sc.MaybeEmit(ctx, s.UserID, models.CategoryAdvice, now)
				return err
			})
		case <-podcast.C:
			sc.runCheck(ctx, s.UserID, "podcast", func(now time.Time) error {
				_, err := sc.CheckPodcast(ctx, s.UserID, now)
				return err
			})
		}
	}
}

// runCheck never lets a failed check end the session.
func (sc *Scheduler) runCheck(ctx context.Context, userID, name string, check func(now time.Time) error) {
	if ctx.Err() != nil {
		return
	}
	if err := check(sc.now()); err != nil {
		sc.logger.Error("Scheduled check failed", zap.String("userID", userID), zap.String("check", name), zap.Error(err))
	}
}
