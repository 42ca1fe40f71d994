package directory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow/pkg/domain"
)

func TestLoadSeed(t *testing.T) {
	t.Run("valid seed", func(t *testing.T) {
		users, err := LoadSeed(strings.NewReader(`[
			{"id":"7d1f0c6e-3b1a-4c55-9d43-2f7b8c1e0a11","name":"Dr Tan","role":"doctor","clinicId":"0b9e2f54-6a3d-4e0f-8c2b-5d1a7e9f3c22"}
		]`))
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, domain.RoleDoctor, users[0].Role)
		assert.Equal(t, "Dr Tan", users[0].Name)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader(`[
			{"id":"7d1f0c6e-3b1a-4c55-9d43-2f7b8c1e0a11","name":"Sam","role":"receptionist","clinicId":"0b9e2f54-6a3d-4e0f-8c2b-5d1a7e9f3c22"}
		]`))
		assert.Error(t, err)
	})

	t.Run("missing clinic", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader(`[{"id":"7d1f0c6e-3b1a-4c55-9d43-2f7b8c1e0a11","name":"Sam","role":"nurse"}]`))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader(`{`))
		assert.Error(t, err)
	})
}
