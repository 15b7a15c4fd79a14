package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MediaType is the JSON:API content type used by every RDE endpoint.
const MediaType = "application/vnd.api+json"

// Document is a JSON:API top-level document. Data stays raw so single and collection responses
// both decode; use [Document.Resource] or [Document.Resources].
type Document struct {
	Data     json.RawMessage `json:"data,omitempty"`
	Included []Resource      `json:"included,omitempty"`
	Links    map[string]any  `json:"links,omitempty"`
	Meta     map[string]any  `json:"meta,omitempty"`
	Errors   []ErrorObject   `json:"errors,omitempty"`
}

// Resource is a JSON:API resource object.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         map[string]any          `json:"links,omitempty"`
	Meta          map[string]any          `json:"meta,omitempty"`
}

// Relationship holds resource linkage, which is null, one identifier or a list of them.
type Relationship struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Links map[string]any  `json:"links,omitempty"`
	Meta  map[string]any  `json:"meta,omitempty"`
}

// Identifier is a resource identifier object.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ErrorObject is one entry of a JSON:API errors array.
type ErrorObject struct {
	ID     string         `json:"id,omitempty"`
	Status string         `json:"status,omitempty"`
	Code   string         `json:"code,omitempty"`
	Title  string         `json:"title,omitempty"`
	Detail string         `json:"detail,omitempty"`
	Source map[string]any `json:"source,omitempty"`
}

func (e ErrorObject) String() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return e.Title + ": " + e.Detail
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	default:
		return e.Code
	}
}

// ParseDocument decodes a JSON:API response body.
func ParseDocument(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON:API document: %w", err)
	}
	return &doc, nil
}

// NewDocument wraps a single resource as {"data": r}.
func NewDocument(r Resource) (*Document, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return &Document{Data: data}, nil
}

// IsCollection reports whether data is an array.
func (d *Document) IsCollection() bool {
	trimmed := bytes.TrimSpace(d.Data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Resource decodes single-resource data. A null or missing data member returns nil.
func (d *Document) Resource() (*Resource, error) {
	if isNull(d.Data) {
		return nil, nil
	}
	if d.IsCollection() {
		return nil, fmt.Errorf("document data is a collection")
	}
	var r Resource
	if err := json.Unmarshal(d.Data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode resource: %w", err)
	}
	return &r, nil
}

// Resources decodes data as a list. Single-resource data yields a one-element slice.
func (d *Document) Resources() ([]Resource, error) {
	if isNull(d.Data) {
		return nil, nil
	}
	if !d.IsCollection() {
		r, err := d.Resource()
		if err != nil {
			return nil, err
		}
		return []Resource{*r}, nil
	}
	var rs []Resource
	if err := json.Unmarshal(d.Data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}
	return rs, nil
}

// FindIncluded returns the included resource with the given type and id.
func (d *Document) FindIncluded(typ, id string) (*Resource, bool) {
	for i := range d.Included {
		if d.Included[i].Type == typ && d.Included[i].ID == id {
			return &d.Included[i], true
		}
	}
	return nil, false
}

// ResultCount returns meta.resultCount, which paged list endpoints report.
func (d *Document) ResultCount() (int, bool) {
	return number(d.Meta["resultCount"])
}

// Next returns links.next, empty on the last page.
func (d *Document) Next() string {
	s, _ := d.Links["next"].(string)
	return s
}

// String returns a string attribute, or "" when absent or not a string.
func (r Resource) String(key string) string {
	s, _ := r.Attributes[key].(string)
	return s
}

// Int returns a numeric attribute.
func (r Resource) Int(key string) (int, bool) {
	return number(r.Attributes[key])
}

// Bool returns a boolean attribute, false when absent.
func (r Resource) Bool(key string) bool {
	b, _ := r.Attributes[key].(bool)
	return b
}

// Related returns the identifiers linked under the named relationship.
func (r Resource) Related(name string) []Identifier {
	rel, ok := r.Relationships[name]
	if !ok {
		return nil
	}
	return rel.Identifiers()
}

// Identifiers decodes linkage data, which may be null, an object or an array.
func (rel Relationship) Identifiers() []Identifier {
	if isNull(rel.Data) {
		return nil
	}
	trimmed := bytes.TrimSpace(rel.Data)
	if trimmed[0] == '[' {
		var ids []Identifier
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return nil
		}
		return ids
	}
	var id Identifier
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return nil
	}
	return []Identifier{id}
}

// ToOne builds a relationship pointing at a single resource.
func ToOne(typ, id string) Relationship {
	data, _ := json.Marshal(Identifier{Type: typ, ID: id})
	return Relationship{Data: data}
}

// ToMany builds a relationship pointing at several resources of one type.
func ToMany(typ string, ids ...string) Relationship {
	list := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		list = append(list, Identifier{Type: typ, ID: id})
	}
	data, _ := json.Marshal(list)
	return Relationship{Data: data}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
