package services

import "context"

// DefaultProgramID is the ARIM program that owns the shared instrument catalogue.
const DefaultProgramID = "4bbf62be-f270-4a46-9682-38cd064607ba"

// Instruments lists instruments registered under a program.
func (c *Client) Instruments(ctx context.Context, programID string) (*Response, error) {
	if programID == "" {
		programID = DefaultProgramID
	}
	opts := ListOptions{Limit: 10000, Sort: "id", Extra: map[string]string{"programId": programID}}
	return c.get(ctx, c.endpoints.Instrument+"/instruments", opts.query())
}

// Organizations lists the organizations that operate instruments.
func (c *Client) Organizations(ctx context.Context) (*Response, error) {
	return c.get(ctx, c.endpoints.Instrument+"/organizations", nil)
}

// TypeTerms lists instrument type vocabulary for a program.
func (c *Client) TypeTerms(ctx context.Context, programID string) (*Response, error) {
	if programID == "" {
		programID = DefaultProgramID
	}
	return c.get(ctx, c.endpoints.Instrument+"/typeTerms", map[string]string{"programId": programID})
}
