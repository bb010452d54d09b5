package csvstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abebuf", "ABEBUF"},
		{"  AqAra01 ", "AQARA01"},
		{"ABEBUF", "ABEBUF"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeID(tt.in))
	}
}

func TestReadPopulationIDs(t *testing.T) {
	in := strings.NewReader("abebuf\n\nAQARA01  some trailing note\n  cudlec \n")

	ids, err := ReadPopulationIDs(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"abebuf", "AQARA01", "cudlec"}, ids)
}

func TestReadPopulationIDs_Empty(t *testing.T) {
	ids, err := ReadPopulationIDs(strings.NewReader("\n  \n"))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIDSet(t *testing.T) {
	set := IDSet([]string{"abebuf", "ABEBUF", " cudlec"})

	assert.Len(t, set, 2)
	assert.Contains(t, set, "ABEBUF")
	assert.Contains(t, set, "CUDLEC")
}
