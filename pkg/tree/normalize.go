package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/stselect/stselect/pkg/models"
)

// BrowseListVersion is the first daemon version whose db/browse returns a
// list of entries instead of nested objects.
var BrowseListVersion = semver.MustParse("1.13.0")

// UsesList reports whether a daemon of version v returns the list shape.
func UsesList(v *semver.Version) bool {
	return !v.LessThan(BrowseListVersion)
}

// Normalize converts a db/browse payload into nodes. When v is nil the
// shape is detected from the payload.
func Normalize(raw json.RawMessage, v *semver.Version) ([]*models.Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []*models.Node{}, nil
	}

	nested := trimmed[0] == '{'
	if v != nil {
		nested = !UsesList(v)
	}
	if nested {
		return NormalizeNested(trimmed)
	}
	return NormalizeList(trimmed)
}

// NormalizeNested converts the pre-1.13 shape, where a directory is an
// object keyed by child name and a file is a [modTime, size] array. Keys
// keep their payload order.
func NormalizeNested(raw json.RawMessage) ([]*models.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("browse payload: %w", err)
	}
	if d, ok := tok.(json.Delim); ok && d == '[' {
		// An empty directory listing may come back as [].
		if !dec.More() {
			return []*models.Node{}, nil
		}
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("browse payload: expected object, got %v", tok)
	}

	nodes := []*models.Node{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("browse payload: %w", err)
		}
		name, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("browse entry %q: %w", name, err)
		}
		value = bytes.TrimSpace(value)

		if len(value) > 0 && value[0] == '{' {
			children, err := NormalizeNested(value)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &models.Node{Name: name, Type: models.TypeDirectory, Children: children})
			continue
		}
		nodes = append(nodes, nestedFile(name, value))
	}
	return nodes, nil
}

func nestedFile(name string, value json.RawMessage) *models.Node {
	n := &models.Node{Name: name, Type: models.TypeFile}

	var fields []json.RawMessage
	if json.Unmarshal(value, &fields) != nil {
		return n
	}
	if len(fields) > 0 {
		var t time.Time
		if json.Unmarshal(fields[0], &t) == nil {
			n.ModTime = &t
		}
	}
	if len(fields) > 1 {
		if size, err := strconv.ParseInt(string(bytes.TrimSpace(fields[1])), 10, 64); err == nil {
			n.SetSize(size)
		}
	}
	return n
}

type listEntry struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Size     *int64          `json:"size"`
	ModTime  *time.Time      `json:"modTime"`
	Children []listEntry     `json:"children"`
}

// NormalizeList converts the list shape returned from 1.13 on. Entries keep
// their order; directory children stay nil when the payload omits them.
func NormalizeList(raw json.RawMessage) ([]*models.Node, error) {
	var entries []listEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("browse payload: %w", err)
	}
	return fromEntries(entries), nil
}

func fromEntries(entries []listEntry) []*models.Node {
	nodes := make([]*models.Node, 0, len(entries))
	for _, e := range entries {
		n := &models.Node{
			Name:    e.Name,
			Type:    nodeType(e.Type),
			ModTime: e.ModTime,
		}
		switch n.Type {
		case models.TypeDirectory:
			if e.Children != nil {
				n.Children = fromEntries(e.Children)
			}
		case models.TypeFile:
			n.Size = e.Size
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// nodeType maps the daemon's type names, and the protocol's numeric values
// used by some versions, onto file and directory. Missing types map to "".
func nodeType(raw json.RawMessage) models.NodeType {
	var name string
	if json.Unmarshal(raw, &name) == nil {
		switch name {
		case "":
			return ""
		case "FILE_INFO_TYPE_DIRECTORY", "DIRECTORY", "directory":
			return models.TypeDirectory
		default:
			return models.TypeFile
		}
	}
	var num int
	if json.Unmarshal(raw, &num) == nil {
		if num == 1 {
			return models.TypeDirectory
		}
		return models.TypeFile
	}
	return ""
}
