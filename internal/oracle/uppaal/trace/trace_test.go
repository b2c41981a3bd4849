package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiascj/gridforge/internal/oracle"
	"github.com/mathiascj/gridforge/internal/oracle/uppaal/xmlgen"
)

func TestSatisfiedFalseOnFormulaNotSatisfied(t *testing.T) {
	assert.False(t, Satisfied([]byte("-- Formula is NOT satisfied.")))
}

func TestSatisfiedFalseOnEmpty(t *testing.T) {
	assert.False(t, Satisfied(nil))
}

func TestSatisfiedTrueOtherwise(t *testing.T) {
	assert.True(t, Satisfied([]byte("-- Formula is satisfied.")))
}

func TestMakespanExtractsLastClockValue(t *testing.T) {
	text := "State: (1, 2)\nglobal_c=0\nState: (2, 3)\nglobal_c=42\n"
	got, err := Makespan(text)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestMakespanReturnsParseFailureWhenMissing(t *testing.T) {
	_, err := Makespan("no clock info here")
	assert.ErrorIs(t, err, oracle.ErrParseFailure)
}

func TestTraversalExtractsHandshakeAndWork(t *testing.T) {
	ids := xmlgen.IDMaps{
		Module:   map[int]string{0: "m0"},
		WorkType: map[int]string{0: "drill"},
		Recipe:   map[int]string{0: "widget"},
	}

	text := "Transitions:\n" +
		"recipe0.handshake[0]->mworker0.working\n" +
		"{ m0 }\n" +
		"Transitions:\n" +
		"mworker0.work[0]->mworker0.Handshaking\n" +
		"{ var=[0] }\n" +
		"State: (x)\n" +
		"global_c=7\n"

	result, err := Traversal(text, ids)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Makespan)
	require.Contains(t, result.Worked, "m0")
	assert.True(t, result.Worked["m0"].Has("widget"))
	require.Contains(t, result.ActiveWork, "m0")
	assert.True(t, result.ActiveWork["m0"].Has("drill"))
}
