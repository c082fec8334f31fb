package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		password    string
		displayName string
		wantFields  []string
	}{
		{"valid", "alice@example.com", "wonderland", "Alice", nil},
		{"missing everything", "", "", " ", []string{"email", "password", "display_name"}},
		{"bad email", "alice", "wonderland", "Alice", []string{"email"}},
		{"short password", "alice@example.com", "12345", "Alice", []string{"password"}},
		{"long name", "alice@example.com", "wonderland", strings.Repeat("a", 101), []string{"display_name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateRegister(tt.email, tt.password, tt.displayName)
			assert.Equal(t, len(tt.wantFields) > 0, errs.HasErrors())
			for _, f := range tt.wantFields {
				assert.Contains(t, errs, f)
			}
			assert.Len(t, errs, len(tt.wantFields))
		})
	}
}

func TestValidateLogin(t *testing.T) {
	assert.False(t, ValidateLogin("bob@example.com", "123456").HasErrors())
	assert.Contains(t, ValidateLogin("bob@example.com", "123"), "password")
	assert.Contains(t, ValidateLogin("not-an-email", "123456"), "email")
}

func TestValidatePost(t *testing.T) {
	assert.False(t, ValidatePost("Title", "Body").HasErrors())

	errs := ValidatePost("  ", "")
	assert.Equal(t, "Title is required", errs["title"])
	assert.Equal(t, "Content is required", errs["content"])

	errs = ValidatePost(strings.Repeat("가", 201), "ok")
	assert.Equal(t, "Title is too long", errs["title"])
}

func TestValidatePostUpdate(t *testing.T) {
	assert.False(t, ValidatePostUpdate(nil, nil).HasErrors())

	empty := ""
	errs := ValidatePostUpdate(&empty, nil)
	assert.Contains(t, errs, "title")
	assert.NotContains(t, errs, "content")
}

func TestValidateComment(t *testing.T) {
	assert.False(t, ValidateComment("nice post").HasErrors())
	assert.Equal(t, "Comment is required", ValidateComment("\n\t")["content"])
	assert.Equal(t, "Comment is too long", ValidateComment(strings.Repeat("x", 2001))["content"])
}
