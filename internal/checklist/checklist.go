// Package checklist loads the read-only checklist definition that sessions
// are seeded from.
//
// A definition is decoded from YAML (JSON is accepted as a YAML subset),
// validated against an embedded CUE schema and NFC-normalised. The result is
// immutable: accessors return copies.
package checklist

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultVersion is used when the file carries no version string.
const DefaultVersion = "1.0"

// DefaultFinishMessage is shown on finish when the file carries none.
const DefaultFinishMessage = "Checklist complete. Part milling is approved."

//go:embed default.yaml
var defaultYAML []byte

// Item is one checklist entry.
type Item struct {
	Text     string
	Hint     string
	Critical bool
}

// Block is an ordered group of items sharing a heading.
type Block struct {
	Title string
	Items []Item
}

// Definition is an immutable, validated checklist.
type Definition struct {
	version       string
	finishMessage string
	blocks        []Block
}

type fileItem struct {
	Text     string `yaml:"text"`
	Hint     string `yaml:"hint"`
	Critical bool   `yaml:"critical"`
}

type fileBlock struct {
	Title string     `yaml:"title"`
	Items []fileItem `yaml:"items"`
}

type fileDefinition struct {
	Version       string      `yaml:"version"`
	FinishMessage string      `yaml:"finish_message"`
	Blocks        []fileBlock `yaml:"blocks"`
}

// Load reads and parses the checklist file at path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Default returns the bundled sample checklist.
func Default() *Definition {
	def, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("bundled checklist invalid: %v", err))
	}
	return def
}

// DefaultYAML returns the bundled sample checklist source, used by
// `nestcheck init` to write a starting file.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}

// Parse decodes and validates a checklist document.
func Parse(data []byte) (*Definition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode checklist: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var raw fileDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode checklist: %w", err)
	}

	def := &Definition{
		version:       clean(raw.Version),
		finishMessage: clean(raw.FinishMessage),
		blocks:        make([]Block, 0, len(raw.Blocks)),
	}
	if def.version == "" {
		def.version = DefaultVersion
	}
	if def.finishMessage == "" {
		def.finishMessage = DefaultFinishMessage
	}
	for _, fb := range raw.Blocks {
		b := Block{Title: clean(fb.Title), Items: make([]Item, 0, len(fb.Items))}
		for _, fi := range fb.Items {
			b.Items = append(b.Items, Item{
				Text:     clean(fi.Text),
				Hint:     clean(fi.Hint),
				Critical: fi.Critical,
			})
		}
		def.blocks = append(def.blocks, b)
	}
	return def, nil
}

// clean trims and NFC-normalises s so visually identical text from
// different editors compares equal.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Version returns the checklist version string.
func (d *Definition) Version() string { return d.version }

// FinishMessage returns the message shown when a session is finished.
func (d *Definition) FinishMessage() string { return d.finishMessage }

// NumBlocks returns the number of blocks.
func (d *Definition) NumBlocks() int { return len(d.blocks) }

// NumItems returns the total number of items across all blocks.
func (d *Definition) NumItems() int {
	n := 0
	for _, b := range d.blocks {
		n += len(b.Items)
	}
	return n
}

// Blocks returns a deep copy of the blocks in order.
func (d *Definition) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	for i, b := range d.blocks {
		out[i] = Block{Title: b.Title, Items: append([]Item(nil), b.Items...)}
	}
	return out
}

// BlockTitle returns the title of block i, or "" if i is out of range.
func (d *Definition) BlockTitle(i int) string {
	if i < 0 || i >= len(d.blocks) {
		return ""
	}
	return d.blocks[i].Title
}

// Walk calls fn for every item in (block, item) order.
func (d *Definition) Walk(fn func(blockIndex, itemIndex int, item Item)) {
	for bi, b := range d.blocks {
		for ii, it := range b.Items {
			fn(bi, ii, it)
		}
	}
}
