// Copyright 2026 fanjia1024
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

package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-platform/pkg/errors"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "default is env", provider: ""},
		{name: "memory", provider: "memory"},
		{name: "env", provider: "env"},
		{name: "unknown provider", provider: "k8s", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(Config{Provider: tc.provider})
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported secret provider")
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}

func TestMemoryAndEnvStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	for _, s := range []Store{NewMemoryStore(), NewEnvStore()} {
		require.NoError(t, s.Set(ctx, "TRIAGE_SECRET_TEST_KEY", "value"))
		got, err := s.Get(ctx, "TRIAGE_SECRET_TEST_KEY")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
		require.NoError(t, s.Delete(ctx, "TRIAGE_SECRET_TEST_KEY"))
		_, err = s.Get(ctx, "TRIAGE_SECRET_TEST_KEY")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "openai", "sk-from-store"))

	got, err := Resolve(ctx, store, "sk-plain", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-plain", got)

	got, err = Resolve(ctx, store, "", "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-store", got)

	got, err = Resolve(ctx, store, "", "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Resolve(ctx, nil, "", "openai")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSecretValue(t *testing.T) {
	v, err := secretValue(map[string]interface{}{"data": map[string]interface{}{"value": "v2"}}, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	v, err = secretValue(map[string]interface{}{"api_key": "v1"}, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	_, err = secretValue(map[string]interface{}{"n": 1}, "k")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
