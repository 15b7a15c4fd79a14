package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/rdex/internal/services"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

// uploadAll uploads every file to the dataset and returns the upload ids in order.
func (r *Runner) uploadAll(ctx context.Context, datasetID string, files []string) ([]string, error) {
	ids := make([]string, 0, len(files))
	for _, path := range files {
		id, err := r.api.UploadFile(ctx, datasetID, path)
		if err != nil {
			return ids, fmt.Errorf("upload %s: %w", path, err)
		}
		r.logger.Info("uploaded", "file", filepath.Base(path), "upload_id", id)
		ids = append(ids, id)
	}
	return ids, nil
}

// EntriesUpload uploads files and prints one upload id per line.
func (r *Runner) EntriesUpload(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	files := cmd.StringArgs("files")
	if len(files) == 0 {
		return fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}

	ids, err := r.uploadAll(ctx, cmd.String("dataset"), files)
	for i, id := range ids {
		r.writePlain("%s\t%s\n", id, filepath.Base(files[i]))
	}
	return err
}

// entryPayload uploads the command's files and builds the entry document. The data owner and
// instrument come from the dataset.
func (r *Runner) entryPayload(ctx context.Context, cmd *cli.Command) (map[string]any, error) {
	datasetID := cmd.String("dataset")
	doc, err := r.loadDataset(ctx, datasetID, false)
	if err != nil {
		return nil, err
	}
	ds, err := doc.Resource()
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("%w: dataset %s", shared.ErrNotFound, datasetID)
	}

	in := services.EntryInputFromDataset(*ds)
	in.DataName = cmd.String("name")
	in.Description = cmd.String("description")
	in.ExperimentID = cmd.String("experiment")
	in.Sample.SampleID = cmd.String("sample-id")
	in.Sample.Names = cmd.StringSlice("sample-name")
	in.UploadIDs = cmd.StringSlice("upload")

	if raw := cmd.String("custom"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Custom); err != nil {
			return nil, fmt.Errorf("%w: --custom must be a JSON object: %v", shared.ErrInvalidInput, err)
		}
	}

	if files := cmd.StringArgs("files"); len(files) > 0 {
		ids, err := r.uploadAll(ctx, datasetID, files)
		if err != nil {
			return nil, err
		}
		in.UploadIDs = append(in.UploadIDs, ids...)
	}

	return services.NewEntryPayload(in)
}

// EntriesValidate checks an entry without registering it.
func (r *Runner) EntriesValidate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	payload, err := r.entryPayload(ctx, cmd)
	if err != nil {
		return err
	}
	resp, err := r.api.ValidateEntry(ctx, payload)
	if err != nil {
		return err
	}
	r.writePlain("✓ Entry is valid\n")
	return r.writeRaw(resp.Body, true)
}

// EntriesCreate registers a data entry.
func (r *Runner) EntriesCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	payload, err := r.entryPayload(ctx, cmd)
	if err != nil {
		return err
	}
	resp, err := r.api.CreateEntry(ctx, payload)
	if err != nil {
		return err
	}

	doc, err := resp.Document()
	if err == nil {
		if entry, err := doc.Resource(); err == nil && entry != nil {
			return r.writePlain("✓ Entry registered: %s\n", entry.ID)
		}
	}
	r.writePlain("✓ Entry registered\n")
	return r.writeRaw(resp.Body, true)
}

// FilesList prints the files of a data entry.
func (r *Runner) FilesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	dataID := cmd.StringArg("data-id")
	if dataID == "" {
		return fmt.Errorf("%w: data entry id", shared.ErrMissingArgument)
	}
	resp, err := r.api.DataEntryFiles(ctx, dataID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeRaw(resp.Body, true)
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}
	files, err := doc.Resources()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return r.writePlain("No files\n")
	}
	for _, f := range files {
		size, _ := f.Int("fileSize")
		r.writePlain("%s  %-40s %10d  %s\n", f.ID, f.String("fileName"), size, f.String("fileType"))
	}
	return nil
}

// FilesDownload saves a file to --output, or under the data file cache when no output is given.
func (r *Runner) FilesDownload(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	fileID := cmd.StringArg("file-id")
	if fileID == "" {
		return fmt.Errorf("%w: file id", shared.ErrMissingArgument)
	}

	path := cmd.String("output")
	if path == "" {
		name := cmd.String("name")
		if name == "" {
			name = fileID
		}
		path = r.snapshots.DataFilePath(cmd.String("grant"), cmd.String("dataset-name"), name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	n, err := r.api.DownloadFile(ctx, fileID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return r.writePlain("✓ Downloaded %d bytes to %s\n", n, path)
}
