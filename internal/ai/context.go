package ai

import (
	"strings"

	"github.com/desertthunder/rdex/internal/models"
)

// DatasetContext extracts the values the dataset templates use from a dataset document fetched
// with its template and instruments included. Absent values are empty, which Render marks as
// unset.
func DatasetContext(doc *models.Document) (map[string]string, error) {
	ds, err := doc.Resource()
	if err != nil {
		return nil, err
	}
	values := map[string]string{
		"name":          "",
		"grant_number":  "",
		"subject_title": "",
		"dataset_type":  "",
		"template_name": "",
		"instruments":   "",
		"description":   "",
	}
	if ds == nil {
		return values, nil
	}

	values["name"] = ds.String("name")
	values["grant_number"] = ds.String("grantNumber")
	values["subject_title"] = ds.String("subjectTitle")
	values["dataset_type"] = ds.String("datasetType")
	values["description"] = ds.String("description")

	for _, id := range ds.Related("template") {
		if tpl, ok := doc.FindIncluded(id.Type, id.ID); ok {
			values["template_name"] = displayName(*tpl)
			if values["dataset_type"] == "" {
				values["dataset_type"] = tpl.String("datasetType")
			}
		} else {
			values["template_name"] = id.ID
		}
	}

	var instruments []string
	for _, id := range ds.Related("instruments") {
		if inst, ok := doc.FindIncluded(id.Type, id.ID); ok {
			instruments = append(instruments, displayName(*inst))
		} else {
			instruments = append(instruments, id.ID)
		}
	}
	values["instruments"] = strings.Join(instruments, ", ")
	return values, nil
}

func displayName(r models.Resource) string {
	for _, key := range []string{"nameJa", "nameEn", "name"} {
		if s := r.String(key); s != "" {
			return s
		}
	}
	return r.ID
}
