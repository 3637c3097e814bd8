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
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/firestore"
)

type fakeJob struct{ err error }

func (j fakeJob) Results() (*firestore.WriteResult, error) {
	if j.err != nil {
		return nil, j.err
	}
	return &firestore.WriteResult{}, nil
}

func TestAwaitWritesReportsFailedDelete(t *testing.T) {
	denied := errors.New("permission denied")
	jobs := []writeJob{fakeJob{}, fakeJob{err: denied}, fakeJob{}, fakeJob{err: errors.New("later")}}

	ok, err := awaitWrites(jobs)
	if !errors.Is(err, denied) {
		t.Errorf("err = %v, want the first failure", err)
	}
	if ok != 2 {
		t.Errorf("succeeded = %d, want 2", ok)
	}

	if ok, err := awaitWrites([]writeJob{fakeJob{}, fakeJob{}}); err != nil || ok != 2 {
		t.Errorf("awaitWrites(all ok) = %d, %v", ok, err)
	}
	if ok, err := awaitWrites(nil); err != nil || ok != 0 {
		t.Errorf("awaitWrites(nil) = %d, %v", ok, err)
	}
}

func TestAnnotationDocIDIsInjective(t *testing.T) {
	pairs := [][2]string{
		{"user-1", "a/b"},
		{"user-1", "a_b"},
		{"user-1", "a__b"},
		{"user-1__a", "b"},
		{"user-1", "a.b"},
		{"user-1.a", "b"},
		{"user-2", "a/b"},
	}
	seen := make(map[string][2]string)
	for _, p := range pairs {
		id := annotationDocID(p[0], p[1])
		if strings.Contains(id, "/") {
			t.Errorf("annotationDocID(%q, %q) = %q contains a slash", p[0], p[1], id)
		}
		if prev, dup := seen[id]; dup {
			t.Errorf("annotationDocID collision: %v and %v both map to %q", prev, p, id)
		}
		seen[id] = p
	}
	if annotationDocID("user-1", "evt_123") != annotationDocID("user-1", "evt_123") {
		t.Error("annotationDocID is not deterministic")
	}
}
