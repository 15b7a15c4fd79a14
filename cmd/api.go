package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

// resolveURL turns a path into a URL on the API host named by base. Absolute URLs pass through.
func (r *Runner) resolveURL(base, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}

	e := r.api.Endpoints()
	hosts := map[string]string{
		"rde":        e.RDE,
		"user":       e.User,
		"material":   e.Material,
		"instrument": e.Instrument,
		"entry":      e.Entry,
	}
	root, ok := hosts[base]
	if !ok {
		return "", fmt.Errorf("%w: unknown API host %q", shared.ErrInvalidFlag, base)
	}
	return root + "/" + strings.TrimLeft(path, "/"), nil
}

// APIGet makes a direct authenticated GET request.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	target, err := r.resolveURL(cmd.String("base"), cmd.StringArg("path"))
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "url", target)

	resp, err := r.api.Do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return r.writeRaw(resp.Body, cmd.Bool("pretty"))
}

// APIPost makes a direct authenticated POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	data := cmd.String("data")
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
	}

	target, err := r.resolveURL(cmd.String("base"), cmd.StringArg("path"))
	if err != nil {
		return err
	}

	r.logger.Info("POST request", "url", target)

	resp, err := r.api.Do(ctx, http.MethodPost, target, []byte(data))
	if err != nil {
		return err
	}
	return r.writeRaw(resp.Body, cmd.Bool("pretty"))
}
