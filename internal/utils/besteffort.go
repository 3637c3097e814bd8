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

package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BestEffort runs a non-critical side effect. Its failure is logged and
// discarded; it never reaches the caller. The side effect gets its own
// timeout and survives cancellation of ctx so a finished request does not
// abort it half way.
func BestEffort(ctx context.Context, logger *zap.Logger, op string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Warn("Best-effort side effect failed", zap.String("op", op), zap.Error(err))
	}
}
