package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/go-resty/resty/v2"
)

// SampleInput describes a sample registered together with a data entry. When SampleID is set the
// existing sample is referenced and the other fields are ignored.
type SampleInput struct {
	SampleID     string
	Description  string
	Composition  string
	ReferenceURL string
	Names        []string
	Tags         []string
}

// Attachment is an uploaded file attached to an entry's invoice rather than its data files.
type Attachment struct {
	UploadID    string `json:"uploadId"`
	Description string `json:"description"`
}

// EntryInput describes a data entry.
type EntryInput struct {
	DatasetID    string
	DataOwnerID  string
	InstrumentID string
	DataName     string
	Description  string
	ExperimentID string
	Sample       SampleInput
	Custom       map[string]any
	UploadIDs    []string
	Attachments  []Attachment
}

// EntryInputFromDataset seeds an EntryInput from a dataset resource. The data owner is the
// dataset manager, then the applicant, then the first data owner. The instrument is the first one
// linked.
func EntryInputFromDataset(ds models.Resource) EntryInput {
	in := EntryInput{DatasetID: ds.ID}
	for _, rel := range []string{"manager", "applicant", "dataOwners"} {
		if ids := ds.Related(rel); len(ids) > 0 && ids[0].ID != "" {
			in.DataOwnerID = ids[0].ID
			break
		}
	}
	if in.DataOwnerID == "" {
		in.DataOwnerID = ds.String("ownerId")
	}
	if ids := ds.Related("instruments"); len(ids) > 0 {
		in.InstrumentID = ids[0].ID
	}
	return in
}

// NewEntryPayload builds the document for POST /entries.
func NewEntryPayload(in EntryInput) (map[string]any, error) {
	if in.DatasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(in.DataName) == "" {
		return nil, fmt.Errorf("%w: data name is required", shared.ErrInvalidInput)
	}
	if len(in.UploadIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one uploaded data file is required", shared.ErrInvalidInput)
	}

	var sample map[string]any
	if in.Sample.SampleID != "" {
		sample = map[string]any{"sampleId": in.Sample.SampleID}
	} else {
		names := in.Sample.Names
		if names == nil {
			names = []string{}
		}
		sample = map[string]any{
			"description":        in.Sample.Description,
			"composition":        in.Sample.Composition,
			"referenceUrl":       in.Sample.ReferenceURL,
			"hideOwner":          nil,
			"names":              names,
			"relatedSamples":     []string{},
			"tags":               in.Sample.Tags,
			"generalAttributes":  nil,
			"specificAttributes": nil,
			"ownerId":            in.DataOwnerID,
		}
	}

	custom := in.Custom
	if custom == nil {
		custom = map[string]any{}
	}
	attachments := in.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}

	files := models.ToMany("upload", in.UploadIDs...)
	return map[string]any{
		"data": map[string]any{
			"type": "entry",
			"attributes": map[string]any{
				"invoice": map[string]any{
					"datasetId": in.DatasetID,
					"basic": map[string]any{
						"dataOwnerId":  in.DataOwnerID,
						"dataName":     in.DataName,
						"instrumentId": in.InstrumentID,
						"description":  in.Description,
						"experimentId": in.ExperimentID,
					},
					"custom": custom,
					"sample": sample,
				},
			},
			"relationships": map[string]any{
				"dataFiles": files,
			},
		},
		"meta": map[string]any{"attachments": attachments},
	}, nil
}

func entryHeaders(req *resty.Request) {
	req.SetHeader("Origin", DefaultEntryOrigin).SetHeader("Referer", DefaultEntryOrigin+"/")
}

// Upload sends one file's bytes to the entry API and returns its upload id.
func (c *Client) Upload(ctx context.Context, datasetID, fileName string, data []byte) (string, error) {
	if datasetID == "" {
		return "", fmt.Errorf("%w: dataset id is required", shared.ErrInvalidInput)
	}
	resp, err := c.call(ctx, http.MethodPost, c.endpoints.Entry+"/uploads", map[string]string{"datasetId": datasetID}, data, entryTimeout,
		entryHeaders,
		func(req *resty.Request) {
			req.SetHeader("Accept", "application/json").
				SetHeader("Content-Type", "application/octet-stream").
				SetHeader("X-File-Name", escapeFileName(fileName))
		})
	if err != nil {
		return "", err
	}

	var out struct {
		UploadID string `json:"uploadId"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.UploadID == "" {
		return "", fmt.Errorf("%w: upload response has no uploadId", shared.ErrAPIRequest)
	}
	return out.UploadID, nil
}

// UploadFile reads path and uploads it under its base name.
func (c *Client) UploadFile(ctx context.Context, datasetID, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return c.Upload(ctx, datasetID, filepath.Base(path), data)
}

// ValidateEntry asks the entry API to check a payload without registering it.
func (c *Client) ValidateEntry(ctx context.Context, payload any) (*Response, error) {
	return c.call(ctx, http.MethodPost, c.endpoints.Entry+"/entries", map[string]string{"validationOnly": "true"}, payload, entryTimeout, entryHeaders)
}

// CreateEntry registers a data entry.
func (c *Client) CreateEntry(ctx context.Context, payload any) (*Response, error) {
	return c.call(ctx, http.MethodPost, c.endpoints.Entry+"/entries", nil, payload, entryTimeout, entryHeaders)
}

// escapeFileName percent-encodes every byte outside the unreserved set, spaces included.
func escapeFileName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
