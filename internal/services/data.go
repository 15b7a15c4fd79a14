package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/rdex/internal/shared"
)

// DataEntries lists the data entries registered in a dataset.
func (c *Client) DataEntries(ctx context.Context, datasetID string, opts ListOptions) (*Response, error) {
	opts = opts.withDefaults(ListOptions{
		Limit:   100,
		Sort:    "-created",
		Include: []string{"owner", "sample", "thumbnailFile", "files"},
	})
	if opts.Filters == nil {
		opts.Filters = map[string]string{}
	}
	opts.Filters["dataset.id"] = datasetID
	return c.get(ctx, c.endpoints.RDE+"/data", opts.query())
}

// DataEntryFiles lists the files attached to one data entry.
func (c *Client) DataEntryFiles(ctx context.Context, dataID string) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/data/"+url.PathEscape(dataID)+"/files", nil)
}

// maxErrorBody caps how much of a failed download's body is read for error details.
const maxErrorBody = 64 << 10

// DownloadFile streams a file's content to w and returns the number of bytes written. Only the
// connect and response-header timeouts apply; ctx bounds the transfer.
func (c *Client) DownloadFile(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	rawURL := c.endpoints.RDE + "/files/" + url.PathEscape(fileID)
	req, err := c.requestOn(ctx, c.download, rawURL)
	if err != nil {
		return 0, err
	}

	resp, err := req.
		SetQueryParam("isDownload", "true").
		SetHeader("Accept", "*/*").
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return 0, fmt.Errorf("%w: download %s: %v", shared.ErrAPIRequest, fileID, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return 0, newAPIErrorBody(http.MethodGet, resp, raw)
	}

	dst := &trackedWriter{w: w}
	n, err := io.Copy(dst, body)
	switch {
	case err == nil:
		return n, nil
	case dst.err != nil:
		return n, fmt.Errorf("failed to write %s: %w", fileID, err)
	default:
		return n, fmt.Errorf("%w: read %s after %d bytes: %w", shared.ErrAPIRequest, fileID, n, err)
	}
}

// trackedWriter remembers a write failure so copy errors can be attributed to either side.
type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
