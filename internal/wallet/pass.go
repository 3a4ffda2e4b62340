package wallet

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	manifestFile  = "manifest.json"
	signatureFile = "signature"
)

// Area is the pass section a field is rendered in.
type Area string

const (
	AreaHeader    Area = "headerFields"
	AreaPrimary   Area = "primaryFields"
	AreaSecondary Area = "secondaryFields"
	AreaAuxiliary Area = "auxiliaryFields"
	AreaBack      Area = "backFields"
)

// Field is one labeled value on the pass.
type Field struct {
	Key   string
	Label string
	Value any
	Area  Area
}

// Request identifies the pass to issue.
type Request struct {
	PassTypeIdentifier string `validate:"required,max=255,hostname_rfc1123"`
	SerialNumber       string `validate:"required,max=64,printascii,excludesall=/\\"`
}

// Options carries the per-deployment pass attributes.
type Options struct {
	TeamIdentifier   string
	OrganizationName string
	Description      string
}

// Builder assembles signed .pkpass archives.
type Builder struct {
	tmpl     *Template
	signer   *Signer
	opts     Options
	newToken func() string
	now      func() time.Time
}

// NewBuilder combines a template with signing material.
func NewBuilder(tmpl *Template, signer *Signer, opts Options) *Builder {
	if opts.TeamIdentifier == "" && signer != nil {
		opts.TeamIdentifier = signer.TeamIdentifier()
	}
	if opts.Description == "" {
		opts.Description = "Tarjeta de cliente"
	}
	return &Builder{
		tmpl:     tmpl,
		signer:   signer,
		opts:     opts,
		newToken: func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

var passStyles = []string{"storeCard", "generic", "coupon", "eventTicket", "boardingPass"}

// Build renders pass.json for the card and packs it with the template assets,
// the manifest and its signature.
func (b *Builder) Build(req Request, fields []Field) ([]byte, error) {
	if b.signer == nil {
		return nil, errors.New("wallet: no signing material configured")
	}
	pass, err := b.passJSON(req, fields)
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{passFile: pass}
	for name, data := range b.tmpl.assets {
		files[name] = data
	}
	manifest, err := buildManifest(files)
	if err != nil {
		return nil, err
	}
	signature, err := b.signer.Sign(manifest)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := append([]string{passFile}, b.tmpl.AssetNames()...)
	entries := make([]archiveEntry, 0, len(names)+2)
	for _, name := range names {
		entries = append(entries, archiveEntry{name, files[name]})
	}
	entries = append(entries, archiveEntry{manifestFile, manifest}, archiveEntry{signatureFile, signature})
	modified := b.now()
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("wallet: archive %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("wallet: archive %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("wallet: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

type archiveEntry struct {
	name string
	data []byte
}

func (b *Builder) passJSON(req Request, fields []Field) ([]byte, error) {
	doc, err := b.tmpl.document()
	if err != nil {
		return nil, fmt.Errorf("wallet: template pass.json: %w", err)
	}
	doc["formatVersion"] = 1
	doc["passTypeIdentifier"] = req.PassTypeIdentifier
	doc["serialNumber"] = req.SerialNumber
	doc["authenticationToken"] = b.newToken()
	if b.opts.TeamIdentifier != "" {
		doc["teamIdentifier"] = b.opts.TeamIdentifier
	}
	if b.opts.OrganizationName != "" {
		doc["organizationName"] = b.opts.OrganizationName
	}
	if _, ok := doc["description"]; !ok {
		doc["description"] = b.opts.Description
	}

	style := "storeCard"
	for _, s := range passStyles {
		if _, ok := doc[s]; ok {
			style = s
			break
		}
	}
	structure, _ := doc[style].(map[string]any)
	if structure == nil {
		structure = map[string]any{}
	}
	for _, f := range fields {
		area := f.Area
		if area == "" {
			area = AreaSecondary
		}
		existing, _ := structure[string(area)].([]any)
		structure[string(area)] = append(existing, map[string]any{
			"key":   f.Key,
			"label": f.Label,
			"value": f.Value,
		})
	}
	doc[style] = structure

	barcode := map[string]any{
		"format":          "PKBarcodeFormatQR",
		"message":         req.SerialNumber,
		"messageEncoding": "iso-8859-1",
		"altText":         req.SerialNumber,
	}
	doc["barcodes"] = []any{barcode}
	doc["barcode"] = barcode

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("wallet: encode pass.json: %w", err)
	}
	return data, nil
}

// buildManifest maps every file name to the hex SHA-1 of its contents.
func buildManifest(files map[string][]byte) ([]byte, error) {
	manifest := make(map[string]string, len(files))
	for name, data := range files {
		sum := sha1.Sum(data)
		manifest[name] = hex.EncodeToString(sum[:])
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("wallet: encode manifest: %w", err)
	}
	return data, nil
}
