package model

import (
	"slices"
	"strconv"
	"strings"
)

// Kind classifies a document for step grouping.
type Kind string

const (
	KindArticle   Kind = "article"
	KindOverwrite Kind = "overwrite"
	KindResource  Kind = "resource"
	KindRedirect  Kind = "redirect"
	KindTOC       Kind = "toc"
)

// UIDDefinition records where a UID is declared. Values are immutable.
type UIDDefinition struct {
	Name   string `json:"name" yaml:"name"`
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
	// Path is an RFC 6901 pointer into the document content.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Location formats the definition site as file[:line[:column]].
func (d UIDDefinition) Location() string {
	var b strings.Builder
	b.WriteString(d.File)
	if d.Line > 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(d.Line))
		if d.Column > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(d.Column))
		}
	}
	if d.Path != "" {
		b.WriteString("#")
		b.WriteString(d.Path)
	}
	return b.String()
}

// Document is one logical document moving through the pipeline. A document
// is owned by a single task at a time.
type Document struct {
	// Key is the stable identity: the source path relative to BaseDir.
	Key     string
	Kind    Kind
	BaseDir string
	// Group names the version group the document belongs to, if any.
	Group string
	// Content is processor specific.
	Content    any
	Properties *Bag
	UIDs       []UIDDefinition
	// OriginalKey points at the pre-restructuring identity after Prebuild
	// splits or merges documents.
	OriginalKey string

	uidRefs  map[string]struct{}
	fileRefs map[string]struct{}
}

// NewDocument returns a document with an empty property bag.
func NewDocument(key string, kind Kind, baseDir string) *Document {
	return &Document{
		Key:         key,
		Kind:        kind,
		BaseDir:     baseDir,
		Properties:  NewBag(),
		OriginalKey: key,
	}
}

// DefineUID appends a UID definition located in this document.
func (d *Document) DefineUID(name string, line, column int, path string) UIDDefinition {
	def := UIDDefinition{Name: name, File: d.Key, Line: line, Column: column, Path: path}
	d.UIDs = append(d.UIDs, def)
	return def
}

// ReferenceUID records an outgoing cross-reference.
func (d *Document) ReferenceUID(uid string) {
	if uid == "" {
		return
	}
	if d.uidRefs == nil {
		d.uidRefs = make(map[string]struct{})
	}
	d.uidRefs[uid] = struct{}{}
}

// ReferenceFile records a dependency on another source file.
func (d *Document) ReferenceFile(key string) {
	if key == "" {
		return
	}
	if d.fileRefs == nil {
		d.fileRefs = make(map[string]struct{})
	}
	d.fileRefs[key] = struct{}{}
}

// UIDReferences returns the referenced UIDs sorted.
func (d *Document) UIDReferences() []string { return sortedKeys(d.uidRefs) }

// FileReferences returns the referenced files sorted.
func (d *Document) FileReferences() []string { return sortedKeys(d.fileRefs) }

// Derive creates a document that replaces d after a Prebuild restructuring.
func (d *Document) Derive(key string) *Document {
	nd := NewDocument(key, d.Kind, d.BaseDir)
	nd.Group = d.Group
	nd.OriginalKey = d.OriginalKey
	nd.Properties = d.Properties.Clone()
	return nd
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
