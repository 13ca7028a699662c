// Package importers provides the host's built-in asset import functions.
package importers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/modloader/internal/loading"
)

// ErrUnknownImporter is returned by Lookup for an unregistered name.
var ErrUnknownImporter = errors.New("unknown importer")

// RawAsset is a file's bytes together with their BLAKE2b-256 digest.
type RawAsset struct {
	Data   []byte
	Digest [blake2b.Size256]byte
}

// Raw imports a file as one RawAsset named by its asset path key.
func Raw(path, key string) ([]loading.ImportedAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return []loading.ImportedAsset{{
		Name:  key,
		Asset: RawAsset{Data: data, Digest: blake2b.Sum256(data)},
	}}, nil
}

// Text imports a file as one string asset named by its asset path key.
func Text(path, key string) ([]loading.ImportedAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return []loading.ImportedAsset{{Name: key, Asset: string(data)}}, nil
}

// YAML imports every document in a YAML stream. A single document is named
// by the asset path key; a multi-document file yields "<key>#0", "<key>#1", ...
// Empty documents are skipped.
//
// Postcondition: A parse error anywhere in the stream yields no assets.
func YAML(path, key string) ([]loading.ImportedAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var docs []any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s document %d: %w", key, len(docs), err)
		}
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) == 1 {
		return []loading.ImportedAsset{{Name: key, Asset: docs[0]}}, nil
	}
	out := make([]loading.ImportedAsset, 0, len(docs))
	for i, doc := range docs {
		out = append(out, loading.ImportedAsset{Name: fmt.Sprintf("%s#%d", key, i), Asset: doc})
	}
	return out, nil
}

var builtin = map[string]loading.ImportFunc{
	"raw":  Raw,
	"text": Text,
	"yaml": YAML,
}

// Lookup returns the built-in import function registered under name.
func Lookup(name string) (loading.ImportFunc, error) {
	fn, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownImporter)
	}
	return fn, nil
}

// Names returns the built-in importer names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for n := range builtin {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RegisterDefaults registers the host's own asset loaders. They run for every
// mod before any action a mod registers itself.
//
// Postcondition: reg holds a "data" (yaml, yml) and a "text" (txt) asset loader.
func RegisterDefaults(reg *loading.Registry) {
	reg.AddAssetLoadingAction("data", "Loading data", YAML, "yaml", "yml")
	reg.AddAssetLoadingAction("text", "Loading text", Text, "txt")
}
