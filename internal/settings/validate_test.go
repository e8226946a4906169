package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCustomPlatform(t *testing.T) {
	existing := []CustomPlatform{
		{ID: "custom-1", Name: "Mistral", URL: "https://chat.mistral.ai/chat"},
	}

	tests := []struct {
		name      string
		candidate NewCustomPlatform
		wantErr   string
	}{
		{"valid", NewCustomPlatform{Name: "Perplexity", URL: "https://www.perplexity.ai/"}, ""},
		{"duplicate name ignores case", NewCustomPlatform{Name: "  mistral ", URL: "https://example.com"}, "already exists"},
		{"empty name", NewCustomPlatform{Name: "   ", URL: "https://example.com"}, "name is required"},
		{"relative url", NewCustomPlatform{Name: "Local", URL: "/chat"}, "absolute URL"},
		{"missing host", NewCustomPlatform{Name: "Local", URL: "https://"}, "absolute URL"},
		{"garbage url", NewCustomPlatform{Name: "Local", URL: "::not a url"}, "absolute URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCustomPlatform(existing, tt.candidate)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateMaxTextLength(t *testing.T) {
	assert.NoError(t, ValidateMaxTextLength(MinTextLength))
	assert.NoError(t, ValidateMaxTextLength(MaxTextLength))
	assert.Error(t, ValidateMaxTextLength(MinTextLength-1))
	assert.Error(t, ValidateMaxTextLength(MaxTextLength+1))
}

func TestPatchKeysAndApply(t *testing.T) {
	dark, platform := true, "claude"
	p := Patch{DarkMode: &dark, DefaultPlatform: &platform}

	assert.Equal(t, []string{KeyDarkMode, KeyDefaultPlatform}, p.Keys())
	assert.False(t, p.IsEmpty())
	assert.True(t, Patch{}.IsEmpty())

	got := p.Apply(Defaults())
	assert.True(t, got.DarkMode)
	assert.Equal(t, "claude", got.DefaultPlatform)
	assert.Equal(t, Defaults().DefaultModel, got.DefaultModel)
}
