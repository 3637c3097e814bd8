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

package repository

import (
	"fmt"

	"flowos.app/flowsync/internal/models"
	"flowos.app/flowsync/internal/utils"
)

// tokenCipher encrypts token secrets at rest. An empty key disables encryption.
type tokenCipher struct {
	key string
}

func (c tokenCipher) encrypt(rec *models.TokenRecord) (*models.TokenRecord, error) {
	if c.key == "" {
		return rec, nil
	}
	encrypted := *rec
	var err error
	if encrypted.AccessToken != "" {
		encrypted.AccessToken, err = utils.Encrypt(encrypted.AccessToken, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt access token: %w", err)
		}
	}
	if encrypted.RefreshToken != "" {
		encrypted.RefreshToken, err = utils.Encrypt(encrypted.RefreshToken, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}
	return &encrypted, nil
}

func (c tokenCipher) decrypt(rec *models.TokenRecord) (*models.TokenRecord, error) {
	if c.key == "" {
		return rec, nil
	}
	decrypted := *rec
	var err error
	if decrypted.AccessToken != "" {
		decrypted.AccessToken, err = utils.Decrypt(decrypted.AccessToken, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
	}
	if decrypted.RefreshToken != "" {
		decrypted.RefreshToken, err = utils.Decrypt(decrypted.RefreshToken, c.key)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}
	return &decrypted, nil
}
