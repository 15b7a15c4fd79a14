package services

import (
	"maps"
	"strconv"
	"strings"
)

// ListOptions pages, sorts and filters list endpoints. Zero fields are left out of the query.
type ListOptions struct {
	Limit   int
	Offset  int
	Sort    string
	Include []string
	// Fields maps a resource type to its sparse fieldset.
	Fields map[string][]string
	// Filters become filter[key]=value.
	Filters map[string]string
	// Extra is copied into the query unchanged.
	Extra map[string]string
}

func (o ListOptions) query() map[string]string {
	q := map[string]string{}
	if o.Limit > 0 {
		q["page[limit]"] = strconv.Itoa(o.Limit)
		q["page[offset]"] = strconv.Itoa(max(o.Offset, 0))
	}
	if o.Sort != "" {
		q["sort"] = o.Sort
	}
	if len(o.Include) > 0 {
		q["include"] = strings.Join(o.Include, ",")
	}
	for typ, fields := range o.Fields {
		q["fields["+typ+"]"] = strings.Join(fields, ",")
	}
	for k, v := range o.Filters {
		q["filter["+k+"]"] = v
	}
	maps.Copy(q, o.Extra)
	return q
}

// withDefaults fills unset fields from def.
func (o ListOptions) withDefaults(def ListOptions) ListOptions {
	if o.Limit == 0 {
		o.Limit = def.Limit
	}
	if o.Sort == "" {
		o.Sort = def.Sort
	}
	if o.Include == nil {
		o.Include = def.Include
	}
	if o.Fields == nil {
		o.Fields = def.Fields
	}
	return o
}
