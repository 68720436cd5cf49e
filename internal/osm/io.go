package osm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// ReadElements reads a JSON array of elements from path one element at a
// time. An empty file yields no elements.
func ReadElements(ctx context.Context, path string) ([]Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "osm: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec := json.NewDecoder(bufio.NewReader(f))
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "osm: read %s", path)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, eris.Errorf("osm: %s is not an element array", path)
	}

	var elems []Element
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "osm: read %s", path)
		}
		var e Element
		if err := dec.Decode(&e); err != nil {
			return nil, eris.Wrapf(err, "osm: decode element %d of %s", len(elems), path)
		}
		elems = append(elems, e)
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrapf(err, "osm: unterminated array in %s", path)
	}
	return elems, nil
}

// WriteElements writes elems to path as a JSON array, one element at a time.
func WriteElements(path string, elems []Element) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "osm: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	if _, err := w.WriteString("["); err != nil {
		return eris.Wrap(err, "osm: write")
	}
	for i, e := range elems {
		if i > 0 {
			if _, err := w.WriteString(","); err != nil {
				return eris.Wrap(err, "osm: write")
			}
		}
		if err := enc.Encode(e); err != nil {
			return eris.Wrapf(err, "osm: encode element %d", e.ID)
		}
	}
	if _, err := w.WriteString("]\n"); err != nil {
		return eris.Wrap(err, "osm: write")
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "osm: flush")
	}
	return f.Close()
}
