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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"flowos.app/flowsync/internal/config"
)

type AuthUtils struct{}

// NewAuthUtils creates a new instance of AuthUtils.
func NewAuthUtils() *AuthUtils {
	return &AuthUtils{}
}

// SetCookie sets an HTTP cookie with common secure defaults.
func (a *AuthUtils) SetCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https", // Check for TLS or proxy
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	})
}

// GenerateOAuthState creates a random base64 string for OAuth state.
func (a *AuthUtils) GenerateOAuthState() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to read random bytes for state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GetBearerToken retrieves the access token from the Authorization header.
func (a *AuthUtils) GetBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	parts := SplitAndTrim(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if len(parts[1]) == 0 {
		return "", fmt.Errorf("missing token in Authorization header")
	}
	return parts[1], nil
}

// GetTokenFromQuery retrieves the access token from the token query parameter,
// for browser navigations that cannot set headers.
func (a *AuthUtils) GetTokenFromQuery(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return "", fmt.Errorf("missing token query parameter")
	}
	return token, nil
}

// ClearOAuthCookies removes OAuth-related cookies.
func (a *AuthUtils) ClearOAuthCookies(w http.ResponseWriter, r *http.Request) {
	a.SetCookie(w, r, config.OauthStateCookieName, "", -1)
	a.SetCookie(w, r, config.OauthUserCookieName, "", -1)
}

// SplitAndTrim splits a string by a separator and trims whitespace from each part.
func SplitAndTrim(s string, sep string) []string {
	parts := strings.Split(s, sep)
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
