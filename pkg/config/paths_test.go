// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDir(t *testing.T) {
	t.Run("default to ~/.ripple", func(t *testing.T) {
		t.Setenv("RIPPLE_DATA_DIR", "")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, ".ripple"), DataDir())
	})

	t.Run("use RIPPLE_DATA_DIR when set", func(t *testing.T) {
		t.Setenv("RIPPLE_DATA_DIR", "/custom/ripple/data")
		assert.Equal(t, "/custom/ripple/data", DataDir())
	})

	t.Run("expand tilde", func(t *testing.T) {
		t.Setenv("RIPPLE_DATA_DIR", "~/custom/.ripple")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(homeDir, "custom", ".ripple"), DataDir())
	})

	t.Run("make relative path absolute", func(t *testing.T) {
		t.Setenv("RIPPLE_DATA_DIR", "relative/dir")

		cwd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cwd, "relative", "dir"), DataDir())
	})
}

func TestSubDir(t *testing.T) {
	t.Setenv("RIPPLE_DATA_DIR", "/data/ripple")
	assert.Equal(t, "/data/ripple/organizations", SubDir("organizations"))
}
