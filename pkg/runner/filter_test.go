package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterIncludes(t *testing.T) {
	tests := []struct {
		name  string
		match []string
		skip  []string
		title string
		want  bool
	}{
		{"no patterns", nil, nil, "Guest Tests › should display login page", true},
		{"substring match", []string{"Guest"}, nil, "Guest Tests › should display login page", true},
		{"substring miss", []string{"Admin"}, nil, "Guest Tests › should display login page", false},
		{"glob match", []string{"*› should display*"}, nil, "Guest Tests › should display login page", true},
		{"glob anchored", []string{"Tests*"}, nil, "Guest Tests › should display login page", false},
		{"any of several", []string{"Admin", "Guest*"}, nil, "Guest Tests › x", true},
		{"skip wins", []string{"Guest*"}, []string{"*password*"}, "Guest Tests › should display password field", false},
		{"skip only", nil, []string{"Sale banner"}, "Sale banner handling › banner stays visible", false},
		{"brace alternatives", []string{"{Guest,Admin}*"}, nil, "Admin › login", true},
		{"metacharacters quoted in plain patterns", []string{"a.b"}, nil, "xa.by", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.match, tt.skip)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Includes(tt.title))
		})
	}
}

func TestFilterRejectsBadPatterns(t *testing.T) {
	_, err := NewFilter([]string{"[a-"}, nil)
	assert.Error(t, err)

	_, err = NewFilter(nil, []string{"{open"})
	assert.Error(t, err)
}
