package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/rdex/internal/models"
	"github.com/desertthunder/rdex/internal/shared"
)

// Group member roles.
const (
	RoleOwner     = "OWNER"
	RoleAssistant = "ASSISTANT"
	RoleMember    = "MEMBER"
	RoleAgent     = "AGENT"
	RoleViewer    = "VIEWER"
)

// Subject is a research grant linked to a group.
type Subject struct {
	GrantNumber string `json:"grantNumber"`
	Title       string `json:"title"`
}

// Role grants a user a role in a group.
type Role struct {
	UserID            string `json:"userId"`
	Role              string `json:"role"`
	CanCreateDatasets bool   `json:"canCreateDatasets"`
	CanEditMembers    bool   `json:"canEditMembers"`
}

// NewRole returns the role with the permissions the site assigns to it: owners may create datasets
// and edit members, assistants may only create datasets.
func NewRole(userID, role string) Role {
	role = strings.ToUpper(role)
	return Role{
		UserID:            userID,
		Role:              role,
		CanCreateDatasets: role == RoleOwner || role == RoleAssistant,
		CanEditMembers:    role == RoleOwner,
	}
}

// SubgroupInput describes a subgroup to create or update.
type SubgroupInput struct {
	Name        string
	Description string
	Subjects    []Subject
	Funds       []string
	Roles       []Role
	ParentID    string
}

func (in SubgroupInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: group name is required", shared.ErrInvalidInput)
	}
	if in.ParentID == "" {
		return fmt.Errorf("%w: parent group id is required", shared.ErrInvalidInput)
	}
	owners := 0
	for _, r := range in.Roles {
		if r.Role == RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		return fmt.Errorf("%w: a group needs exactly one owner, got %d", shared.ErrInvalidInput, owners)
	}
	return nil
}

// NewSubgroupPayload builds the document for POST /groups.
func NewSubgroupPayload(in SubgroupInput) (*models.Document, error) {
	return subgroupDocument("", in)
}

// NewSubgroupUpdatePayload builds the document for PATCH /groups/{id}.
func NewSubgroupUpdatePayload(id string, in SubgroupInput) (*models.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: group id is required", shared.ErrInvalidInput)
	}
	return subgroupDocument(id, in)
}

func subgroupDocument(id string, in SubgroupInput) (*models.Document, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	subjects := in.Subjects
	if subjects == nil {
		subjects = []Subject{}
	}
	funds := make([]map[string]string, 0, len(in.Funds))
	for _, f := range in.Funds {
		if f = strings.TrimSpace(f); f != "" {
			funds = append(funds, map[string]string{"fundNumber": f})
		}
	}

	return models.NewDocument(models.Resource{
		Type: "group",
		ID:   id,
		Attributes: map[string]any{
			"name":        in.Name,
			"description": in.Description,
			"subjects":    subjects,
			"funds":       funds,
			"roles":       in.Roles,
		},
		Relationships: map[string]models.Relationship{
			"parent": models.ToOne("group", in.ParentID),
		},
	})
}

// RootGroup fetches the root group with its children and members.
func (c *Client) RootGroup(ctx context.Context) (*Response, error) {
	return c.Group(ctx, "root")
}

// Group fetches a group with its children and members.
func (c *Client) Group(ctx context.Context, id string) (*Response, error) {
	return c.get(ctx, c.endpoints.RDE+"/groups/"+url.PathEscape(id), map[string]string{"include": "children,members"})
}

// CreateSubgroup posts a subgroup document built by [NewSubgroupPayload].
func (c *Client) CreateSubgroup(ctx context.Context, doc *models.Document) (*Response, error) {
	return c.call(ctx, http.MethodPost, c.endpoints.RDE+"/groups", nil, doc, groupWriteTimeout)
}

// UpdateSubgroup patches a subgroup with a document built by [NewSubgroupUpdatePayload].
func (c *Client) UpdateSubgroup(ctx context.Context, id string, doc *models.Document) (*Response, error) {
	return c.call(ctx, http.MethodPatch, c.endpoints.RDE+"/groups/"+url.PathEscape(id), nil, doc, groupWriteTimeout)
}
