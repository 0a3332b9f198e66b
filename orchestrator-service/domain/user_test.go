package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUser(t *testing.T) {
	tests := []struct {
		name               string
		email              string
		password           string
		userName           string
		expectedViolations []string
	}{
		{
			name:     "valid input",
			email:    "ada@example.com",
			password: "correct-horse",
			userName: "Ada Lovelace",
		},
		{
			name:               "email without at sign",
			email:              "ada.example.com",
			password:           "correct-horse",
			userName:           "Ada",
			expectedViolations: []string{"Invalid email address"},
		},
		{
			name:               "password too short",
			email:              "ada@example.com",
			password:           "short6",
			userName:           "Ada",
			expectedViolations: []string{"Password must be at least 8 characters"},
		},
		{
			name:               "name too short after trimming",
			email:              "ada@example.com",
			password:           "correct-horse",
			userName:           "  a ",
			expectedViolations: []string{"Name must be at least 2 characters"},
		},
		{
			name:     "everything wrong at once",
			email:    "",
			password: "",
			userName: "",
			expectedViolations: []string{
				"Invalid email address",
				"Password must be at least 8 characters",
				"Name must be at least 2 characters",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateUser(tt.email, tt.password, tt.userName)
			assert.Equal(t, tt.expectedViolations, violations)
		})
	}
}

func TestHashPassword(t *testing.T) {
	first := HashPassword("correct-horse")
	second := HashPassword("correct-horse")

	assert.Equal(t, "sha256", first.Algorithm)
	assert.Len(t, first.Digest, 64)
	assert.Equal(t, first.Digest, second.Digest)

	other := HashPassword("battery-staple")
	assert.NotEqual(t, first.Digest, other.Digest)
}

func TestPreferencesMerge(t *testing.T) {
	defaults := DefaultPreferences()

	t.Run("nil overrides keep defaults", func(t *testing.T) {
		merged := defaults.Merge(nil)
		assert.Equal(t, defaults, merged)
		assert.True(t, merged.Notifications.Email)
		assert.Equal(t, "en", merged.Language)
		assert.Equal(t, "UTC", merged.Timezone)
		assert.Equal(t, "light", merged.Theme)
	})

	t.Run("overrides replace provided fields", func(t *testing.T) {
		merged := defaults.Merge(&Preferences{
			Notifications: NotificationPreferences{Push: true},
			Theme:         "dark",
		})

		require.Equal(t, "dark", merged.Theme)
		assert.True(t, merged.Notifications.Push)
		assert.False(t, merged.Notifications.Email)
		assert.Equal(t, "en", merged.Language)
		assert.Equal(t, "UTC", merged.Timezone)
	})
}
