package masking

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		minVisible int
		want       string
	}{
		{"email keeps first three", "a@b.com", 3, "a@b****"},
		{"short value collapses", "12", 5, "**"},
		{"exactly min visible", "abc", 3, "***"},
		{"long value", "0712345678", 3, "071*******"},
		{"empty string", "", 3, ""},
		{"whitespace trimmed", "  ab  ", 3, "**"},
		{"short with small min", "abcd", 1, "a***"},
		{"multibyte keeps whole runes", "😀user@mail.com", 3, "😀us***********"},
		{"accented characters", "éé@x.com", 3, "éé@*****"},
		{"short multibyte collapses", "éé", 3, "**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskValue(tt.value, tt.minVisible))
		})
	}
}

func TestMask_MultibyteStaysValidUTF8(t *testing.T) {
	out := Mask(map[string]interface{}{"email": "😀user@mail.com"})

	got := out["email"].(string)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "😀us***********", got)
}

func TestMask_SensitiveKeys(t *testing.T) {
	in := map[string]interface{}{
		"email":  "john.doe@example.com",
		"Phone":  "0712345678",
		"action": "login",
	}

	out := Mask(in)

	assert.Equal(t, "joh*****************", out["email"])
	assert.Equal(t, "071*******", out["Phone"])
	assert.Equal(t, "login", out["action"])
}

func TestMask_Nested(t *testing.T) {
	in := map[string]interface{}{
		"metadata": map[string]interface{}{
			"email": "a@b.com",
			"depth": map[string]interface{}{
				"phone": "123456",
			},
		},
		"contacts": []interface{}{
			map[string]interface{}{"email": "x@y.com"},
			"plain string",
			42,
		},
	}

	out := Mask(in)

	meta := out["metadata"].(map[string]interface{})
	assert.Equal(t, "a@b****", meta["email"])
	assert.Equal(t, "123***", meta["depth"].(map[string]interface{})["phone"])

	contacts := out["contacts"].([]interface{})
	assert.Equal(t, "x@y****", contacts[0].(map[string]interface{})["email"])
	assert.Equal(t, "plain string", contacts[1])
	assert.Equal(t, 42, contacts[2])
}

func TestMask_NonStringSensitiveValue(t *testing.T) {
	in := map[string]interface{}{"email": 12345, "phone": nil}

	out := Mask(in)

	assert.Equal(t, 12345, out["email"])
	assert.Nil(t, out["phone"])
}

func TestMask_DoesNotMutateInput(t *testing.T) {
	in := map[string]interface{}{"email": "a@b.com"}

	Mask(in)

	assert.Equal(t, "a@b.com", in["email"])
}

func TestMask_NonSensitiveUntouched(t *testing.T) {
	in := map[string]interface{}{
		"user_agent": "Mozilla/5.0",
		"count":      3.5,
		"enabled":    true,
		"empty":      nil,
	}

	out := Mask(in)

	assert.Equal(t, in, out)
}
