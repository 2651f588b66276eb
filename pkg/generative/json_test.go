package generative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "json fence",
			raw:  "```json\n{\"a\": 1}\n```",
			want: "{\"a\": 1}",
		},
		{
			name: "bare fence",
			raw:  "```\n{\"a\": 1}\n```",
			want: "{\"a\": 1}",
		},
		{
			name: "no fence",
			raw:  "  {\"a\": 1}  ",
			want: "{\"a\": 1}",
		},
		{
			name: "fence without newlines",
			raw:  "```json{\"a\": 1}```",
			want: "{\"a\": 1}",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.raw))
		})
	}
}

const testSchema = `{
	"type": "object",
	"required": ["risk_score"],
	"properties": {
		"risk_score": {"type": "number", "minimum": 0, "maximum": 100},
		"drivers": {"type": "array", "items": {"type": "string"}}
	}
}`

func TestValidator(t *testing.T) {
	v, err := NewValidator(testSchema)
	require.NoError(t, err)

	t.Run("valid payload", func(t *testing.T) {
		err := v.Validate([]byte(`{"risk_score": 45, "drivers": ["opacity"]}`))
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := v.Validate([]byte(`{"drivers": []}`))
		require.Error(t, err)
		assert.True(t, errs.IsSchema(err))
		assert.Contains(t, err.Error(), "risk_score")
	})

	t.Run("wrong type", func(t *testing.T) {
		err := v.Validate([]byte(`{"risk_score": "high"}`))
		require.Error(t, err)
		assert.True(t, errs.IsSchema(err))
	})

	t.Run("not json", func(t *testing.T) {
		err := v.Validate([]byte(`the model talked instead`))
		require.Error(t, err)
		assert.True(t, errs.IsSchema(err))
	})
}

func TestParseJSON(t *testing.T) {
	v, err := NewValidator(testSchema)
	require.NoError(t, err)

	t.Run("fenced valid payload", func(t *testing.T) {
		var out struct {
			RiskScore float64  `json:"risk_score"`
			Drivers   []string `json:"drivers"`
		}
		raw := "```json\n{\"risk_score\": 72.5, \"drivers\": [\"conflicting claims\"]}\n```"

		require.NoError(t, ParseJSON(raw, v, &out))
		assert.Equal(t, 72.5, out.RiskScore)
		assert.Equal(t, []string{"conflicting claims"}, out.Drivers)
	})

	t.Run("schema violation surfaces before unmarshal", func(t *testing.T) {
		var out map[string]interface{}
		err := ParseJSON("{}", v, &out)
		require.Error(t, err)
		assert.True(t, errs.IsSchema(err))
	})

	t.Run("no validator still parses", func(t *testing.T) {
		var out map[string]interface{}
		require.NoError(t, ParseJSON(`{"free": "form"}`, nil, &out))
		assert.Equal(t, "form", out["free"])
	})

	t.Run("malformed json without validator", func(t *testing.T) {
		var out map[string]interface{}
		err := ParseJSON("not json at all", nil, &out)
		require.Error(t, err)
		assert.True(t, errs.IsSchema(err))
	})
}
