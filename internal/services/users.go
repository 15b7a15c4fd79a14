package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/desertthunder/rdex/internal/shared"
)

// Self returns the signed-in user.
func (c *Client) Self(ctx context.Context) (*Response, error) {
	return c.get(ctx, c.endpoints.User+"/users/self", nil)
}

// User fetches a user by id.
func (c *Client) User(ctx context.Context, id string) (*Response, error) {
	return c.get(ctx, c.endpoints.User+"/users/"+url.PathEscape(id), nil)
}

// SearchUsers finds users by emailAddress or userName.
func (c *Client) SearchUsers(ctx context.Context, field, value string) (*Response, error) {
	switch field {
	case "emailAddress", "userName":
	default:
		return nil, fmt.Errorf("%w: cannot search users by %q", shared.ErrInvalidArgument, field)
	}
	return c.get(ctx, c.endpoints.User+"/users", map[string]string{"filter[" + field + "]": value})
}
