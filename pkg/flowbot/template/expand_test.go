package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	vars := map[string]any{
		"name":  "Анна",
		"total": 199.0,
		"price": 19.5,
		"count": 3,
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello there", "hello there"},
		{"single placeholder", "Привет, {name}!", "Привет, Анна!"},
		{"integral float without point", "Итого: {total} руб", "Итого: 199 руб"},
		{"fractional float keeps digits", "{price}", "19.5"},
		{"int binding", "x{count}x", "x3x"},
		{"missing kept verbatim", "hi {nope}", "hi {nope}"},
		{"adjacent placeholders", "{name}{count}", "Анна3"},
		{"repeated placeholder", "{name} and {name}", "Анна and Анна"},
		{"brace without identifier", "{1bad} {}", "{1bad} {}"},
		{"underscore names", "{_x}", "{_x}"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.in, vars))
		})
	}
}

func TestExpandSinglePass(t *testing.T) {
	vars := map[string]any{"a": "{b}", "b": "boom"}
	assert.Equal(t, "{b}", Expand("{a}", vars))
}

func TestExpanderMissingEmpty(t *testing.T) {
	e := New(WithMissingAction(MissingEmpty))
	got, err := e.Expand("hi {nope}!", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi !", got)
}

func TestExpanderMissingError(t *testing.T) {
	e := New(WithMissingAction(MissingError))
	_, err := e.Expand("hi {nope} {also}", nil)
	require.Error(t, err)

	var uv *UndefinedVariableError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "nope", uv.Name, "first unresolved name is reported")
}

func TestExpandFunc(t *testing.T) {
	got := ExpandFunc("{a} + {b}", func(name string) (string, bool) {
		if name == "a" {
			return "2", true
		}
		return "", false
	})
	assert.Equal(t, "2 + {b}", got)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "x", "x"},
		{"integral float", 42.0, "42"},
		{"fractional float", 0.25, "0.25"},
		{"negative float", -3.0, "-3"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}
