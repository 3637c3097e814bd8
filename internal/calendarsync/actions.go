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
	"encoding/json"
	"strings"

	"flowos.app/flowsync/internal/models"
)

const (
	minImpactRating = -2
	maxImpactRating = 2

	// maxExpiresIn bounds save_tokens lifetimes to one year.
	maxExpiresIn = 365 * 24 * 60 * 60
)

// Action is one calendar-sync request. Only the types in this file implement it.
type Action interface {
	Name() string
	sealed()
}

type FetchEvents struct{}

// The annotation actions optionally carry the event's metadata, stored with
// the annotation when present.

type RateEvent struct {
	EventID      string
	ImpactRating int
	Event        *models.EventDetails
}

type AddReflection struct {
	EventID    string
	Reflection string
	Event      *models.EventDetails
}

type SaveInsight struct {
	EventID string
	Insight string
	Event   *models.EventDetails
}

type Disconnect struct{}

// SaveTokens stores a token pair obtained by the client. ExpiresIn is in seconds.
type SaveTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

func (FetchEvents) Name() string   { return "fetch_events" }
func (RateEvent) Name() string     { return "rate_event" }
func (AddReflection) Name() string { return "add_reflection" }
func (SaveInsight) Name() string   { return "save_insight" }
func (Disconnect) Name() string    { return "disconnect" }
func (SaveTokens) Name() string    { return "save_tokens" }

func (FetchEvents) sealed()   {}
func (RateEvent) sealed()     {}
func (AddReflection) sealed() {}
func (SaveInsight) sealed()   {}
func (Disconnect) sealed()    {}
func (SaveTokens) sealed()    {}

type actionRequest struct {
	Action       string               `json:"action"`
	EventID      string               `json:"eventId"`
	ImpactRating *int                 `json:"impactRating"`
	Reflection   string               `json:"reflection"`
	Insight      string               `json:"insight"`
	Event        *models.EventDetails `json:"event"`
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	ExpiresIn    *int64               `json:"expiresIn"`
}

// ParseAction decodes a request body into its Action. Malformed bodies,
// unknown actions and missing fields yield a validation *Error.
func ParseAction(body []byte) (Action, error) {
	var req actionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "Invalid request body", Err: err}
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if ev := req.Event; ev != nil {
		if !ev.StartTime.IsZero() && !ev.EndTime.IsZero() && ev.EndTime.Before(ev.StartTime) {
			return nil, validationError("event endTime must not be before startTime")
		}
	}

	switch req.Action {
	case "fetch_events":
		return FetchEvents{}, nil
	case "rate_event":
		if req.EventID == "" {
			return nil, validationError("eventId is required")
		}
		if req.ImpactRating == nil {
			return nil, validationError("impactRating is required")
		}
		if r := *req.ImpactRating; r < minImpactRating || r > maxImpactRating {
			return nil, validationError("impactRating must be between %d and %d", minImpactRating, maxImpactRating)
		}
		return RateEvent{EventID: req.EventID, ImpactRating: *req.ImpactRating, Event: req.Event}, nil
	case "add_reflection":
		if req.EventID == "" {
			return nil, validationError("eventId is required")
		}
		if strings.TrimSpace(req.Reflection) == "" {
			return nil, validationError("reflection is required")
		}
		return AddReflection{EventID: req.EventID, Reflection: req.Reflection, Event: req.Event}, nil
	case "save_insight":
		if req.EventID == "" {
			return nil, validationError("eventId is required")
		}
		if strings.TrimSpace(req.Insight) == "" {
			return nil, validationError("insight is required")
		}
		return SaveInsight{EventID: req.EventID, Insight: req.Insight, Event: req.Event}, nil
	case "disconnect":
		return Disconnect{}, nil
	case "save_tokens":
		if req.AccessToken == "" {
			return nil, validationError("accessToken is required")
		}
		if req.ExpiresIn == nil || *req.ExpiresIn <= 0 {
			return nil, validationError("expiresIn must be a positive number of seconds")
		}
		if *req.ExpiresIn > maxExpiresIn {
			return nil, validationError("expiresIn must not exceed %d seconds", maxExpiresIn)
		}
		return SaveTokens{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken, ExpiresIn: *req.ExpiresIn}, nil
	case "":
		return nil, validationError("action is required")
	default:
		return nil, validationError("Invalid action: %s", req.Action)
	}
}
