// package formatter exports RDE dataset listings to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/gosimple/slug"
)

// Supported export formats
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// DatasetRow is one dataset flattened for export.
type DatasetRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	GrantNumber string `json:"grant_number"`
	DatasetType string `json:"dataset_type"`
	Manager     string `json:"manager"`
	Releases    int    `json:"releases"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

// DatasetRows flattens a dataset list document. The manager name comes from the included user.
func DatasetRows(doc *models.Document) ([]DatasetRow, error) {
	datasets, err := doc.Resources()
	if err != nil {
		return nil, err
	}

	rows := make([]DatasetRow, 0, len(datasets))
	for _, ds := range datasets {
		row := DatasetRow{
			ID:          ds.ID,
			Name:        ds.String("name"),
			GrantNumber: ds.String("grantNumber"),
			DatasetType: ds.String("datasetType"),
			Releases:    len(ds.Related("releases")),
			Created:     ds.String("created"),
			Modified:    ds.String("modified"),
		}
		for _, id := range ds.Related("manager") {
			if user, ok := doc.FindIncluded(id.Type, id.ID); ok {
				row.Manager = user.String("userName")
			} else {
				row.Manager = id.ID
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportToCSV writes rows with columns: ID, Name, GrantNumber, DatasetType, Manager, Releases, Created, Modified
func ExportToCSV(rows []DatasetRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "GrantNumber", "DatasetType", "Manager", "Releases", "Created", "Modified"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.ID,
			r.Name,
			r.GrantNumber,
			r.DatasetType,
			r.Manager,
			strconv.Itoa(r.Releases),
			r.Created,
			r.Modified,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders rows as a titled Markdown table
func ExportToMarkdown(title string, rows []DatasetRow) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Datasets**: %d\n\n", len(rows))

	buf.WriteString("| Name | Grant | Type | Manager | Releases | Modified |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %d | %s |\n",
			cell(r.Name), cell(r.GrantNumber), cell(r.DatasetType), cell(r.Manager), r.Releases, cell(r.Modified))
	}

	return buf.Bytes(), nil
}

// ExportToText renders rows as a numbered plain text list
func ExportToText(rows []DatasetRow) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Datasets: %d\n\n", len(rows))
	for i, r := range rows {
		fmt.Fprintf(&buf, "%d. %s [%s] %s\n", i+1, r.Name, r.GrantNumber, r.ID)
	}

	return buf.Bytes(), nil
}

// Export renders rows in format.
func Export(format, title string, rows []DatasetRow) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(rows)
	case FormatMarkdown:
		return ExportToMarkdown(title, rows)
	case FormatText:
		return ExportToText(rows)
	case FormatJSON:
		return shared.MarshalJSON(rows, true)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q (csv, markdown, txt, json)", shared.ErrInvalidFlag, format)
	}
}

// Filename builds an ASCII file name from a title and format, e.g. "XRD Data 2025" becomes "xrd-data-2025.csv".
func Filename(title, format string) string {
	base := slug.Make(title)
	if base == "" {
		base = "datasets"
	}
	return base + extension(format)
}

// WriteExport renders rows and writes them to dir under [Filename]. It returns the written path.
func WriteExport(dir, format, title string, rows []DatasetRow) (string, error) {
	data, err := Export(format, title, rows)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, Filename(title, format))
	if err := shared.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func extension(format string) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	case FormatJSON:
		return ".json"
	default:
		return ".csv"
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
