// File: internal/gcode/parser.go
package gcode

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// Parser tokenizes raw G-code text into positioned motion commands.
// It maintains absolute/relative positioning mode as running state and
// emits every command with fully resolved absolute coordinates, so
// downstream consumers never need to replay the mode history.
//
// Parsing is a pure, reentrant single pass: a Parser carries no state
// between Parse calls and is safe to share across goroutines.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a motion parser.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("gcode-parser")}
}

// parserState is the positional bookkeeping carried across lines of a
// single parse pass.
type parserState struct {
	x, y, z, e float64
	feed       float64

	// G90/G91 toggle absolute/relative XYZ; M82/M83 toggle the extruder
	// independently, matching Marlin semantics.
	relativeXYZ bool
	relativeE   bool
}

// Parse converts raw text into an ordered sequence of MotionCommands.
// Blank lines and pure-comment lines are skipped for motion purposes.
// Malformed numeric tokens are non-fatal: the axis keeps its
// carry-forward value and a ParseWarning is recorded.
func (p *Parser) Parse(text string) *schemas.ParseResult {
	result := &schemas.ParseResult{}
	state := parserState{}

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		lineNo := i + 1 // source indices are 1-based
		line := strings.TrimRight(raw, "\r")

		code := stripComment(line)
		if strings.TrimSpace(code) == "" {
			continue
		}

		fields := strings.Fields(code)
		word := strings.ToUpper(fields[0])

		switch word {
		case "G0", "G00":
			cmd := p.applyMove(&state, schemas.CommandRapid, fields[1:], line, lineNo, result)
			result.Commands = append(result.Commands, cmd)
		case "G1", "G01":
			cmd := p.applyMove(&state, schemas.CommandLinear, fields[1:], line, lineNo, result)
			result.Commands = append(result.Commands, cmd)
		case "G90":
			state.relativeXYZ = false
			state.relativeE = false
			result.Commands = append(result.Commands, p.otherCommand(&state, line, lineNo))
		case "G91":
			state.relativeXYZ = true
			state.relativeE = true
			result.Commands = append(result.Commands, p.otherCommand(&state, line, lineNo))
		case "M82":
			state.relativeE = false
			result.Commands = append(result.Commands, p.otherCommand(&state, line, lineNo))
		case "M83":
			state.relativeE = true
			result.Commands = append(result.Commands, p.otherCommand(&state, line, lineNo))
		case "G92":
			// Logical position reset. No motion, but the carried
			// position must reflect the new origin for the given axes.
			p.applyPositionSet(&state, fields[1:], lineNo, result)
			result.Commands = append(result.Commands, p.otherCommand(&state, line, lineNo))
		default:
			// Preserved verbatim with no coordinate extraction.
			result.Commands = append(result.Commands, p.otherCommand(&state, line, lineNo))
		}
	}

	if n := len(result.Warnings); n > 0 {
		p.logger.Debug("Parse completed with warnings",
			zap.Int("commands", len(result.Commands)),
			zap.Int("warnings", n))
	}
	return result
}

// applyMove resolves a G0/G1 into absolute coordinates, honoring the
// current positioning modes and substituting carry-forward values for
// unspecified axes.
func (p *Parser) applyMove(state *parserState, kind schemas.CommandKind, args []string, raw string, lineNo int, result *schemas.ParseResult) schemas.MotionCommand {
	for _, arg := range args {
		if len(arg) < 2 {
			result.Warnings = append(result.Warnings, schemas.ParseWarning{
				Line: lineNo, Token: arg, Message: "axis word missing value",
			})
			continue
		}
		axis := arg[0] | 0x20 // lowercase the axis letter
		value, err := strconv.ParseFloat(arg[1:], 64)
		if err != nil {
			result.Warnings = append(result.Warnings, schemas.ParseWarning{
				Line: lineNo, Token: arg,
				Message: fmt.Sprintf("malformed numeric token: %v", err),
			})
			continue
		}

		switch axis {
		case 'x':
			state.x = resolve(state.x, value, state.relativeXYZ)
		case 'y':
			state.y = resolve(state.y, value, state.relativeXYZ)
		case 'z':
			state.z = resolve(state.z, value, state.relativeXYZ)
		case 'e':
			state.e = resolve(state.e, value, state.relativeE)
		case 'f':
			state.feed = value
		default:
			// Unknown axis letter on a move is noise, not an error.
		}
	}

	return schemas.MotionCommand{
		Kind: kind,
		X:    state.x, Y: state.y, Z: state.z, E: state.e,
		Feed: state.feed,
		Line: lineNo,
		Raw:  raw,
	}
}

// applyPositionSet handles G92 axis resets.
func (p *Parser) applyPositionSet(state *parserState, args []string, lineNo int, result *schemas.ParseResult) {
	for _, arg := range args {
		if len(arg) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(arg[1:], 64)
		if err != nil {
			result.Warnings = append(result.Warnings, schemas.ParseWarning{
				Line: lineNo, Token: arg,
				Message: fmt.Sprintf("malformed numeric token: %v", err),
			})
			continue
		}
		switch arg[0] | 0x20 {
		case 'x':
			state.x = value
		case 'y':
			state.y = value
		case 'z':
			state.z = value
		case 'e':
			state.e = value
		}
	}
}

// otherCommand emits a non-move command with the carried position.
func (p *Parser) otherCommand(state *parserState, raw string, lineNo int) schemas.MotionCommand {
	return schemas.MotionCommand{
		Kind: schemas.CommandOther,
		X:    state.x, Y: state.y, Z: state.z, E: state.e,
		Feed: state.feed,
		Line: lineNo,
		Raw:  raw,
	}
}

// resolve applies a coordinate word under the active positioning mode.
func resolve(current, value float64, relative bool) float64 {
	if relative {
		return current + value
	}
	return value
}

// stripComment removes a trailing ;-comment from a line. Lines that are
// entirely comment reduce to the empty string.
func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}
	return line
}
