package services

import (
	"context"
	"net/http"
	"net/url"
)

var datasetListDefaults = ListOptions{
	Limit:   5000,
	Sort:    "-modified",
	Include: []string{"manager", "releases"},
	Fields: map[string][]string{
		"user":    {"id", "userName", "organizationName", "isDeleted"},
		"release": {"version", "releaseNumber"},
	},
}

var datasetDetailQuery = map[string]string{
	"updateViews":             "true",
	"include":                 "releases,applicant,program,manager,relatedDatasets,template,instruments,license,sharingGroups",
	"fields[release]":         "id,releaseNumber,version,doi,note,releaseTime",
	"fields[user]":            "id,userName,organizationName,isDeleted",
	"fields[group]":           "id,name",
	"fields[datasetTemplate]": "id,nameJa,nameEn,version,datasetType,isPrivate,workflowEnabled",
	"fields[instrument]":      "id,nameJa,nameEn,status",
	"fields[license]":         "id,url,fullName",
}

// ListDatasets lists datasets visible to the account, newest first unless opts says otherwise.
func (c *Client) ListDatasets(ctx context.Context, opts ListOptions) (*Response, error) {
	opts = opts.withDefaults(datasetListDefaults)
	return c.get(ctx, c.endpoints.RDE+"/datasets", opts.query())
}

// SearchDatasets lists datasets matching free-text search words.
func (c *Client) SearchDatasets(ctx context.Context, words string) (*Response, error) {
	opts := datasetListDefaults
	opts.Extra = map[string]string{"searchWords": words}
	return c.get(ctx, c.endpoints.RDE+"/datasets", opts.query())
}

// GetDataset fetches one dataset with its releases, manager, template, instruments, license and
// sharing groups included.
func (c *Client) GetDataset(ctx context.Context, id string) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/datasets/"+url.PathEscape(id), datasetDetailQuery)
}

// DatasetPermissions returns the account's permissions on a dataset.
func (c *Client) DatasetPermissions(ctx context.Context, id string) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/datasets/"+url.PathEscape(id)+"/permissions", nil)
}

// UpdateDataset patches a dataset with a JSON:API document.
func (c *Client) UpdateDataset(ctx context.Context, id string, doc any) (*Response, error) {
	return c.call(ctx, http.MethodPatch, c.endpoints.RDE+"/datasets/"+url.PathEscape(id), nil, doc, 0)
}

// DatasetTemplates lists dataset templates. Filters such as programId and teamId go in opts.Extra.
func (c *Client) DatasetTemplates(ctx context.Context, opts ListOptions) (*Response, error) {
	opts = opts.withDefaults(ListOptions{
		Limit:   10000,
		Sort:    "id",
		Include: []string{"instruments"},
		Fields:  map[string][]string{"instrument": {"nameJa", "nameEn"}},
	})
	return c.get(ctx, c.endpoints.RDE+"/datasetTemplates", opts.query())
}

// Licenses lists the licenses a dataset can carry.
func (c *Client) Licenses(ctx context.Context) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/licenses", nil)
}

// Invoice fetches the invoice of a data entry.
func (c *Client) Invoice(ctx context.Context, entryID string) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/invoices/"+url.PathEscape(entryID), map[string]string{
		"include": "submittedBy,dataOwner,instrument",
	})
}

// InvoiceSchema fetches the invoice schema of a dataset template.
func (c *Client) InvoiceSchema(ctx context.Context, templateID string) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/invoiceSchemas/"+url.PathEscape(templateID), nil)
}
