package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

const passFile = "pass.json"

// Template is the static part of a pass: pass.json plus image assets.
type Template struct {
	pass   []byte
	assets map[string][]byte
}

// LoadTemplate reads pass.json and every regular file next to it from fsys.
// Subdirectories hold localisations (es.lproj/...) and are included.
func LoadTemplate(fsys fs.FS) (*Template, error) {
	t := &Template{assets: make(map[string][]byte)}
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Base(name)[0] == '.' {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		switch name {
		case passFile:
			t.pass = data
		case manifestFile, signatureFile:
			// Generated per pass.
		default:
			t.assets[name] = data
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("wallet: load template: %w", err)
	}
	if t.pass == nil {
		return nil, errors.New("wallet: template has no pass.json")
	}
	var probe map[string]any
	if err := json.Unmarshal(t.pass, &probe); err != nil {
		return nil, fmt.Errorf("wallet: template pass.json: %w", err)
	}
	if _, ok := t.assets["icon.png"]; !ok {
		return nil, errors.New("wallet: template has no icon.png")
	}
	return t, nil
}

// document returns a fresh, mutable copy of pass.json.
func (t *Template) document() (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(t.pass, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AssetNames lists asset files in a stable order.
func (t *Template) AssetNames() []string {
	names := make([]string, 0, len(t.assets))
	for name := range t.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
