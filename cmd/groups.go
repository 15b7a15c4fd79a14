package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/repositories"
	"github.com/desertthunder/rdex/internal/services"
	"github.com/desertthunder/rdex/internal/shared"
	"github.com/urfave/cli/v3"
)

// GroupsRoot prints the root group and its subgroups, caching the response as subGroup.json.
func (r *Runner) GroupsRoot(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	resp, err := r.api.RootGroup(ctx)
	if err != nil {
		return err
	}
	if err := r.snapshots.SaveList(repositories.ListSubgroups, resp.Body); err != nil {
		r.logger.Warn("failed to save group snapshot", "error", err)
	}
	if cmd.Bool("json") {
		return r.writeRaw(resp.Body, true)
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}
	root, err := doc.Resource()
	if err != nil {
		return err
	}
	if root == nil {
		return fmt.Errorf("%w: root group", shared.ErrNotFound)
	}

	r.writePlainHeader(root.String("name"))
	r.writePlain("ID: %s\n", root.ID)
	children := root.Related("children")
	r.writePlainln("Subgroups (%d):", len(children))
	for _, child := range children {
		name := child.ID
		if g, ok := doc.FindIncluded(child.Type, child.ID); ok {
			name = g.String("name")
		}
		r.writePlain("  %s  %s\n", child.ID, name)
	}
	return nil
}

// GroupsShow prints a group document and caches it.
func (r *Runner) GroupsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: group id", shared.ErrMissingArgument)
	}
	resp, err := r.api.Group(ctx, id)
	if err != nil {
		return err
	}
	if err := r.snapshots.Save(repositories.KindGroups, id, resp.Body); err != nil {
		r.logger.Warn("failed to save group snapshot", "id", id, "error", err)
	}
	return r.writeRaw(resp.Body, true)
}

// subgroupInput builds a [services.SubgroupInput] from flags. The parent defaults to the root group
// and the owner to the signed-in user.
func (r *Runner) subgroupInput(ctx context.Context, cmd *cli.Command) (services.SubgroupInput, error) {
	in := services.SubgroupInput{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		Funds:       cmd.StringSlice("fund"),
		ParentID:    cmd.String("parent"),
	}

	for _, s := range cmd.StringSlice("subject") {
		grant, title, _ := strings.Cut(s, ":")
		if strings.TrimSpace(grant) == "" {
			return in, fmt.Errorf("%w: subject %q needs GRANT_NUMBER:Title", shared.ErrInvalidFlag, s)
		}
		in.Subjects = append(in.Subjects, services.Subject{GrantNumber: strings.TrimSpace(grant), Title: strings.TrimSpace(title)})
	}

	if in.ParentID == "" {
		id, err := r.resourceID(ctx, r.api.RootGroup)
		if err != nil {
			return in, fmt.Errorf("failed to resolve root group: %w", err)
		}
		in.ParentID = id
	}

	owner := cmd.String("owner")
	if owner == "" {
		id, err := r.resourceID(ctx, r.api.Self)
		if err != nil {
			return in, fmt.Errorf("failed to resolve current user: %w", err)
		}
		owner = id
	}
	in.Roles = append(in.Roles, services.NewRole(owner, services.RoleOwner))

	for _, m := range cmd.StringSlice("member") {
		user, role, ok := strings.Cut(m, ":")
		if !ok || user == "" || role == "" {
			return in, fmt.Errorf("%w: member %q needs USER_ID:ROLE", shared.ErrInvalidFlag, m)
		}
		in.Roles = append(in.Roles, services.NewRole(user, role))
	}
	return in, nil
}

// resourceID calls fetch and returns the id of the single resource it answers with.
func (r *Runner) resourceID(ctx context.Context, fetch func(context.Context) (*services.Response, error)) (string, error) {
	resp, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	doc, err := resp.Document()
	if err != nil {
		return "", err
	}
	res, err := doc.Resource()
	if err != nil {
		return "", err
	}
	if res == nil || res.ID == "" {
		return "", shared.ErrNotFound
	}
	return res.ID, nil
}

// GroupsCreate creates a subgroup under --parent.
func (r *Runner) GroupsCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	in, err := r.subgroupInput(ctx, cmd)
	if err != nil {
		return err
	}
	payload, err := services.NewSubgroupPayload(in)
	if err != nil {
		return err
	}

	r.logger.Info("creating subgroup", "name", in.Name, "parent", in.ParentID)
	resp, err := r.api.CreateSubgroup(ctx, payload)
	if err != nil {
		return err
	}
	return r.reportGroup(resp, "created")
}

// GroupsUpdate replaces a subgroup's attributes and members.
func (r *Runner) GroupsUpdate(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: group id", shared.ErrMissingArgument)
	}
	in, err := r.subgroupInput(ctx, cmd)
	if err != nil {
		return err
	}
	payload, err := services.NewSubgroupUpdatePayload(id, in)
	if err != nil {
		return err
	}

	r.logger.Info("updating subgroup", "id", id, "name", in.Name)
	resp, err := r.api.UpdateSubgroup(ctx, id, payload)
	if err != nil {
		return err
	}
	return r.reportGroup(resp, "updated")
}

func (r *Runner) reportGroup(resp *services.Response, verb string) error {
	doc, err := resp.Document()
	if err != nil {
		return err
	}
	group, err := doc.Resource()
	if err != nil || group == nil {
		return r.writePlain("✓ Subgroup %s\n", verb)
	}
	if err := r.snapshots.Save(repositories.KindGroups, group.ID, resp.Body); err != nil {
		r.logger.Warn("failed to save group snapshot", "id", group.ID, "error", err)
	}
	return r.writePlain("✓ Subgroup %s: %s (%s)\n", verb, group.String("name"), group.ID)
}

// SamplesList prints a group's samples and caches the list under samples/<group>.json.
func (r *Runner) SamplesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}
	groupID := cmd.String("group")
	resp, err := r.api.Samples(ctx, groupID)
	if err != nil {
		return err
	}
	if err := r.snapshots.Save(repositories.KindSamples, groupID, resp.Body); err != nil {
		r.logger.Warn("failed to save sample snapshot", "group", groupID, "error", err)
	}
	if cmd.Bool("json") {
		return r.writeRaw(resp.Body, true)
	}

	doc, err := resp.Document()
	if err != nil {
		return err
	}
	samples, err := doc.Resources()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return r.writePlain("No samples found\n")
	}
	for _, s := range samples {
		r.writePlain("%s  %s\n", s.ID, sampleName(s))
		if c := s.String("composition"); c != "" {
			r.writePlain("    composition: %s\n", c)
		}
	}
	return nil
}

func sampleName(s models.Resource) string {
	names, _ := s.Attributes["names"].([]any)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if str, ok := n.(string); ok && str != "" {
			parts = append(parts, str)
		}
	}
	if len(parts) == 0 {
		return "(unnamed)"
	}
	return strings.Join(parts, " / ")
}
