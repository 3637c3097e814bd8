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

package calendarsync

import (
	"fmt"
	"net/http"

	"flowos.app/flowsync/internal/tokengate"
)

// Kind classifies a failed calendar-sync request.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindReauthRequired
	KindRemoteProvider
	KindValidation
	KindTransientDependency
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindReauthRequired:
		return "reauth_required"
	case KindRemoteProvider:
		return "remote_provider"
	case KindValidation:
		return "validation"
	case KindTransientDependency:
		return "transient_dependency"
	default:
		return "internal"
	}
}

// Error is returned by Dispatch and ParseAction. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Reason  tokengate.Reason
	// Status is the upstream status of a transient dependency failure (429 or 402).
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NeedsAuth tells the client to send the user through calendar authorization again.
func (e *Error) NeedsAuth() bool {
	return e.Kind == KindReauthRequired || e.Kind == KindRemoteProvider
}

// HTTPStatus maps the error to the status code of the calendar-sync endpoint.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindReauthRequired, KindRemoteProvider, KindValidation:
		return http.StatusBadRequest
	case KindTransientDependency:
		if e.Status == http.StatusPaymentRequired {
			return http.StatusPaymentRequired
		}
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
