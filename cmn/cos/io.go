// Package cos - file I/O helpers around the config/result JSON, the
// CLI's only I/O surface.
package cos

import (
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadJSON decodes the file at path (or stdin, when path is "-") into v.
func ReadJSON(path string, v any) error {
	var r io.Reader
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}

// WriteJSON encodes v to the file at path (or stdout, when path is "-").
func WriteJSON(path string, v any) error {
	var w io.Writer
	if path == "-" || path == "" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteJSONLine encodes v as a single compact JSON line to w, matching
// the CLI's "final line of stdout" output contract.
func WriteJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
