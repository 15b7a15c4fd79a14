package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/desertthunder/rdex/internal/models"
)

// Samples lists the samples owned by a group.
func (c *Client) Samples(ctx context.Context, groupID string) (*Response, error) {
	opts := ListOptions{
		Limit:  1000,
		Fields: map[string][]string{"sample": {"names", "description", "composition"}},
		Extra:  map[string]string{"groupId": groupID},
	}
	return c.get(ctx, c.endpoints.Material+"/samples", opts.query())
}

// Sample fetches one sample.
func (c *Client) Sample(ctx context.Context, id string) (*Response, error) {
	return c.get(ctx, c.endpoints.Material+"/samples/"+url.PathEscape(id), nil)
}

// CreateSample posts a sample document.
func (c *Client) CreateSample(ctx context.Context, doc any) (*Response, error) {
	return c.call(ctx, http.MethodPost, c.endpoints.Material+"/samples", nil, doc, 0)
}

// ShareSample adds groups to a sample's sharing groups.
func (c *Client) ShareSample(ctx context.Context, sampleID string, groupIDs ...string) (*Response, error) {
	rel := models.ToMany("group", groupIDs...)
	body := map[string]any{"data": rel.Data}
	return c.call(ctx, http.MethodPost, c.endpoints.Material+"/samples/"+url.PathEscape(sampleID)+"/relationships/sharingGroups", nil, body, 0)
}
