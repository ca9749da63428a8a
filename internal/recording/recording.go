// Package recording reads parsed match recordings and turns their frames
// into movement routines.
package recording

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/freeeve/roundscope/internal/model"
)

var ErrInvalidRecording = errors.New("invalid recording")

// peekSize is the read buffer PeekMapName tokenizes through.
const peekSize = 4096

// Decode reads a recording document.
func Decode(r io.Reader) (*model.Game, error) {
	var g model.Game
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	if g.MapName == "" {
		return nil, fmt.Errorf("%w: missing mapName", ErrInvalidRecording)
	}
	return &g, nil
}

// Load reads the recording at path.
func Load(path string) (*model.Game, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	g, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// PeekMapName returns the top-level mapName of the recording at path. Values
// before it are skipped without being decoded into Go values, and nothing
// after it is read.
func PeekMapName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	name, err := scanMapName(json.NewDecoder(bufio.NewReaderSize(f, peekSize)))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return name, nil
}

// scanMapName walks the top-level object, skipping values until mapName.
func scanMapName(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("peek map name: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", fmt.Errorf("%w: top level is not an object", ErrInvalidRecording)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("peek map name: %w", err)
		}
		key, _ := tok.(string)
		if key == "mapName" {
			var name string
			if err := dec.Decode(&name); err != nil {
				return "", fmt.Errorf("peek map name: %w", err)
			}
			return name, nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", fmt.Errorf("peek map name: %w", err)
		}
	}
	return "", fmt.Errorf("%w: missing mapName", ErrInvalidRecording)
}
