// Package ignores reads and rewrites the managed selective-sync block inside
// a folder's ignore patterns.
package ignores

import (
	"errors"
	"strings"
)

const (
	DefaultStart  = "//* Selective sync (generated by stselect) *//"
	DefaultFinish = "//* ignore all except selected *//"

	// LegacyStart is the start sentinel written by pyselective. Blocks
	// carrying it are read and updated in place.
	LegacyStart = "//* Selective sync (generated by pyselective) *//"

	// IgnoreRest follows the finish sentinel so that everything not
	// selected inside the block is ignored.
	IgnoreRest = "*"
)

var (
	// ErrNoBlock is returned when a write needs the managed block and the
	// ignore list does not contain both sentinels in order.
	ErrNoBlock = errors.New("managed ignore block not found")

	// ErrBrokenBlock is returned when only one sentinel is present, or the
	// finish sentinel precedes the start.
	ErrBrokenBlock = errors.New("managed ignore block is incomplete")
)

// Codec locates the block between two sentinel lines.
type Codec struct {
	Start  string
	Finish string

	// Aliases are further start sentinels recognized when reading. An
	// existing start line is kept as is, Install writes Start.
	Aliases []string
}

// DefaultCodec returns a codec using the default sentinels.
func DefaultCodec() Codec {
	return Codec{Start: DefaultStart, Finish: DefaultFinish, Aliases: []string{LegacyStart}}
}

// Find returns the indexes of the start sentinel and of the first finish
// sentinel after it.
func (c Codec) Find(lines []string) (start, finish int, ok bool) {
	start, finish = -1, -1
	for i, line := range lines {
		l := strings.TrimSpace(line)
		if start < 0 {
			if c.isStart(l) {
				start = i
			}
			continue
		}
		if l == c.Finish {
			finish = i
			return start, finish, true
		}
	}
	return start, finish, false
}

// Read returns the lines between the sentinels. It returns an empty slice
// when the block is absent.
func (c Codec) Read(lines []string) []string {
	start, finish, ok := c.Find(lines)
	if !ok {
		return []string{}
	}
	out := make([]string, finish-start-1)
	copy(out, lines[start+1:finish])
	return out
}

// Splice returns a copy of lines with the block interior replaced by the
// normalized interior.
func (c Codec) Splice(lines, interior []string) ([]string, error) {
	start, finish, ok := c.Find(lines)
	if !ok {
		return nil, ErrNoBlock
	}
	interior = Normalize(interior)

	out := make([]string, 0, len(lines)-(finish-start-1)+len(interior))
	out = append(out, lines[:start+1]...)
	out = append(out, interior...)
	out = append(out, lines[finish:]...)
	return out, nil
}

// Install appends an empty block followed by IgnoreRest when the list has
// no block. The second result reports whether the list changed.
func (c Codec) Install(lines []string) ([]string, bool, error) {
	if _, _, ok := c.Find(lines); ok {
		return lines, false, nil
	}
	for _, l := range lines {
		if l = strings.TrimSpace(l); c.isStart(l) || l == c.Finish {
			return nil, false, ErrBrokenBlock
		}
	}

	out := make([]string, 0, len(lines)+5)
	out = append(out, lines...)
	if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
		out = append(out, "")
	}
	out = append(out, c.Start, "", c.Finish, IgnoreRest)
	return out, true, nil
}

// Outside returns the patterns that are not managed by the block: the lines
// before the start sentinel and after the finish sentinel, without the
// IgnoreRest line that belongs to the block.
func (c Codec) Outside(lines []string) []string {
	start, finish, ok := c.Find(lines)
	if !ok {
		out := make([]string, len(lines))
		copy(out, lines)
		return out
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[:start]...)
	rest := lines[finish+1:]
	if len(rest) > 0 && strings.TrimSpace(rest[0]) == IgnoreRest {
		rest = rest[1:]
	}
	return append(out, rest...)
}

func (c Codec) isStart(line string) bool {
	if line == c.Start {
		return true
	}
	for _, a := range c.Aliases {
		if line == a {
			return true
		}
	}
	return false
}

// Normalize drops trailing blank lines and terminates the interior with
// exactly one blank line.
func Normalize(interior []string) []string {
	end := len(interior)
	for end > 0 && strings.TrimSpace(interior[end-1]) == "" {
		end--
	}
	out := make([]string, 0, end+1)
	out = append(out, interior[:end]...)
	return append(out, "")
}
