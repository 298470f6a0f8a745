// Package content implements the document store: typed content collections
// with backup-before-mutate semantics, an append-only change history, and
// point-in-time restore.
package content

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Type partitions the store into independent collections.
type Type string

const (
	TypeBlog     Type = "blog"
	TypeResearch Type = "research"
	TypeProject  Type = "project"
)

// AllTypes lists every content type in storage order.
var AllTypes = []Type{TypeBlog, TypeResearch, TypeProject}

// Valid reports whether t is a known content type.
func (t Type) Valid() bool {
	switch t {
	case TypeBlog, TypeResearch, TypeProject:
		return true
	}
	return false
}

// Collection returns the storage key of the collection backing this type.
// The blog collection keeps its legacy "blog-posts" name.
func (t Type) Collection() string {
	switch t {
	case TypeBlog:
		return "blog-posts"
	case TypeResearch:
		return "research"
	default:
		return "projects"
	}
}

// Document is one blog post, research entry, or project. Core fields are
// typed; anything else a caller stores rides along in Extra so legacy
// documents round-trip untouched.
type Document struct {
	Slug        string   `json:"slug,omitempty"`
	Title       string   `json:"title,omitempty"`
	Name        string   `json:"name,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Abstract    string   `json:"abstract,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Tech        []string `json:"tech,omitempty"`
	Category    string   `json:"category,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Date        string   `json:"date,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	Featured    bool     `json:"featured,omitempty"`

	Extra map[string]any `json:"-"`
}

var knownFields = map[string]struct{}{
	"slug": {}, "title": {}, "name": {}, "summary": {}, "description": {},
	"abstract": {}, "tags": {}, "tech": {}, "category": {}, "keywords": {},
	"date": {}, "createdAt": {}, "featured": {},
}

// docAlias avoids recursing into the custom marshalers.
type docAlias Document

func (d Document) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(docAlias(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range d.Extra {
		if _, known := knownFields[key]; known {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var alias docAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range all {
		if _, known := knownFields[key]; known {
			delete(all, key)
		}
	}
	*d = Document(alias)
	if len(all) > 0 {
		d.Extra = all
	}
	return nil
}

// ToMap flattens the document into a plain map, Extra included.
func (d Document) ToMap() map[string]any {
	data, err := json.Marshal(d)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// FromMap builds a Document from a plain field map.
func FromMap(m map[string]any) Document {
	data, err := json.Marshal(m)
	if err != nil {
		return Document{}
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}
	}
	return d
}

// Merge shallow-merges updates over the document's fields, matching the
// spread semantics legacy callers expect.
func (d Document) Merge(updates map[string]any) Document {
	merged := d.ToMap()
	for key, value := range updates {
		merged[key] = value
	}
	return FromMap(merged)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// EffectiveSlug returns the document's slug, falling back to the lowercased,
// hyphenated name or title. The fallback is intentionally cruder than
// Slugify: it must match documents stored before slugs existed.
func (d Document) EffectiveSlug() string {
	if d.Slug != "" {
		return d.Slug
	}
	source := d.Name
	if source == "" {
		source = d.Title
	}
	return whitespaceRun.ReplaceAllString(strings.ToLower(source), "-")
}

// DisplayTitle returns the best available human-readable title.
func (d Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	if d.Name != "" {
		return d.Name
	}
	return "Untitled"
}

// SummaryText returns the first non-empty of summary, description, abstract.
func (d Document) SummaryText() string {
	if d.Summary != "" {
		return d.Summary
	}
	if d.Description != "" {
		return d.Description
	}
	return d.Abstract
}

// DerivedTags returns the lowercased union of explicit tags, technology
// list, category, and keywords.
func (d Document) DerivedTags() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.ToLower(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, t := range d.Tags {
		add(t)
	}
	for _, t := range d.Tech {
		add(t)
	}
	add(d.Category)
	for _, k := range d.Keywords {
		add(k)
	}
	return out
}

// EffectiveDate parses the document date, falling back to the creation
// timestamp, then to the epoch.
func (d Document) EffectiveDate() time.Time {
	for _, raw := range []string{d.Date, d.CreatedAt} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			return ts
		}
	}
	return time.Unix(0, 0).UTC()
}

var (
	nonWord    = regexp.MustCompile(`[^\w\s-]`)
	hyphenRun  = regexp.MustCompile(`-+`)
	edgeHyphen = regexp.MustCompile(`^-+|-+$`)
)

// Slugify generates a URL-safe slug for a new document:
// "Hello, World!" becomes "hello-world".
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWord.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return edgeHyphen.ReplaceAllString(s, "")
}
