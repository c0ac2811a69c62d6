package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionDefault(t *testing.T) {
	assert.Equal(t, 10, NewSelection().Value())
}

func TestSelectionByLabel(t *testing.T) {
	tests := []struct {
		label int
		want  int
	}{
		{10, 10},
		{15, 30},
		{20, 60},
		{30, 180},
		{45, 180},
		{180, 180},
	}
	for _, tt := range tests {
		s := NewSelection()
		require.NoError(t, s.Select(tt.label))
		assert.Equal(t, tt.want, s.Value(), "label %d", tt.label)
	}
}

func TestSelectionUnknownLabel(t *testing.T) {
	s := NewSelection()
	require.NoError(t, s.Select(20))

	assert.Error(t, s.Select(25))
	assert.Equal(t, 60, s.Value(), "failed select must keep the previous value")
}
