// File: internal/gcode/parser_test.go
package gcode

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(zaptest.NewLogger(t))
}

func TestParse_CarryForwardCoordinates(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("G90\nG1 X10 Y5 F1500\nG1 X20\n")
	require.Len(t, res.Commands, 3)
	assert.Empty(t, res.Warnings)

	second := res.Commands[2]
	assert.Equal(t, schemas.CommandLinear, second.Kind)
	assert.Equal(t, 20.0, second.X)
	assert.Equal(t, 5.0, second.Y) // unspecified axis carries forward
	assert.Equal(t, 1500.0, second.Feed)
}

func TestParse_RelativeXYZ(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("G91\nG1 X10\nG1 X10 Z0.2\n")
	require.Len(t, res.Commands, 3)

	assert.Equal(t, 10.0, res.Commands[1].X)
	assert.Equal(t, 20.0, res.Commands[2].X)
	assert.Equal(t, 0.2, res.Commands[2].Z)
}

func TestParse_RelativeExtruderOnly(t *testing.T) {
	p := newTestParser(t)

	// M83 puts only the extruder in relative mode; XYZ stays absolute.
	res := p.Parse("G90\nM83\nG1 X10 E1\nG1 X10 E1\n")
	require.Len(t, res.Commands, 4)

	last := res.Commands[3]
	assert.Equal(t, 10.0, last.X)
	assert.Equal(t, 2.0, last.E)
}

func TestParse_PositionReset(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("G90\nG1 E5\nG92 E0\nG1 E1\n")
	require.Len(t, res.Commands, 4)

	assert.Equal(t, 0.0, res.Commands[2].E)
	assert.Equal(t, 1.0, res.Commands[3].E)
}

func TestParse_MalformedTokensAreNonFatal(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("G1 X10 Y10\nG1 Xabc Y20\nG1 X\n")
	require.Len(t, res.Commands, 3)
	require.Len(t, res.Warnings, 2)

	// The malformed axis keeps its carry-forward value.
	assert.Equal(t, 10.0, res.Commands[1].X)
	assert.Equal(t, 20.0, res.Commands[1].Y)

	assert.Equal(t, 2, res.Warnings[0].Line)
	assert.Equal(t, "Xabc", res.Warnings[0].Token)
	assert.Equal(t, 3, res.Warnings[1].Line)
	assert.Equal(t, "axis word missing value", res.Warnings[1].Message)
}

func TestParse_SkipsCommentsAndBlanks(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse(";LAYER:0\n\nG1 X5 ; inline comment\n   \nM117 hello\n")
	require.Len(t, res.Commands, 2)

	assert.Equal(t, 3, res.Commands[0].Line)
	assert.Equal(t, 5.0, res.Commands[0].X)
	assert.Equal(t, schemas.CommandOther, res.Commands[1].Kind)
	assert.Equal(t, 5, res.Commands[1].Line)
}

func TestParse_LineIndicesStrictlyIncreasing(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("G28\nG90\n;comment\nG1 X1\nG1 X2\nM104 S200\nG1 X3\n")
	require.NotEmpty(t, res.Commands)
	for i := 1; i < len(res.Commands); i++ {
		assert.Greater(t, res.Commands[i].Line, res.Commands[i-1].Line)
	}
}

func TestParse_RapidVsLinear(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("G0 X1\nG00 X2\nG1 X3\nG01 X4\n")
	require.Len(t, res.Commands, 4)
	assert.Equal(t, schemas.CommandRapid, res.Commands[0].Kind)
	assert.Equal(t, schemas.CommandRapid, res.Commands[1].Kind)
	assert.Equal(t, schemas.CommandLinear, res.Commands[2].Kind)
	assert.Equal(t, schemas.CommandLinear, res.Commands[3].Kind)
}

// TestParse_Robustness throws derived garbage at the parser: whatever
// the input, it must not panic and must keep line indices ordered.
func TestParse_Robustness(t *testing.T) {
	p := newTestParser(t)
	seed := []byte(strings.Repeat("G1 X10 Y-2.5 E0.3\x00;LAYER:0\nG92 E0\nM104 S210\nG91\x7fG0 Znan\n", 8))
	consumer := fuzz.NewConsumer(seed)

	for i := 0; i < 64; i++ {
		s, err := consumer.GetString()
		if err != nil {
			break
		}
		res := p.Parse(s)
		for j := 1; j < len(res.Commands); j++ {
			require.Greater(t, res.Commands[j].Line, res.Commands[j-1].Line)
		}
		for _, w := range res.Warnings {
			require.Positive(t, w.Line)
		}
	}
}
