package browser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreloadScriptEmbedsItems(t *testing.T) {
	items := map[string]string{
		"session": `{"username":"student","token":"token_student_1"}`,
		"cart":    `[]`,
	}

	script, err := preloadScript(items)
	require.NoError(t, err)

	payload, err := json.Marshal(items)
	require.NoError(t, err)
	assert.Contains(t, script, string(payload))
	assert.Equal(t, 2, strings.Count(script, `"`+RestoreMarkerKey+`"`), "marker checked and set")
	assert.Contains(t, script, `window["`+RestoreErrorKey+`"] = `, "failure recorded for the harness")
	assert.True(t, strings.HasSuffix(script, ");"))
}

func TestPreloadScriptEscapesScriptBreakers(t *testing.T) {
	script, err := preloadScript(map[string]string{"x": "</script><script>alert(1)</script>"})
	require.NoError(t, err)
	assert.NotContains(t, script, "</script>")
}

func TestStringMap(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    map[string]string
		wantErr bool
	}{
		{name: "nil", in: nil, want: map[string]string{}},
		{
			name: "evaluate object",
			in:   map[string]interface{}{"a": "1", "b": nil, "c": float64(3)},
			want: map[string]string{"a": "1", "b": "", "c": "3"},
		},
		{
			name: "string map copied",
			in:   map[string]string{"k": "v"},
			want: map[string]string{"k": "v"},
		},
		{name: "array", in: []interface{}{"a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StringMap(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumber(t *testing.T) {
	for _, in := range []interface{}{2, int64(2), float64(2)} {
		n, err := Number(in)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	n, err := Number(nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = Number("2")
	assert.Error(t, err)
}
