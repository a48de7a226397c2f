package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates an account and signs the client in with a
// browser-session scoped cookie.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AccountResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/account/register", req)
	if err != nil {
		return nil, err
	}

	var account AccountResponse
	if err := decodeJSON(resp, &account, http.StatusCreated); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login signs in and stores the session cookie in the jar.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/account/login", req)
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := decodeJSON(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}
	return &login, nil
}

// Logout revokes the current session and clears the cookie.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/account/logout", nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me returns the signed-in identity.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// EmailAvailable reports whether email can still be registered.
func (c *Client) EmailAvailable(ctx context.Context, email string) (bool, error) {
	path := "/v1/account/email-available?" + url.Values{"email": {email}}.Encode()
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}

	var out EmailAvailableResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Available, nil
}

// ListRoles returns every role with its member count. Requires the Admin role.
func (c *Client) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/admin/roles", nil)
	if err != nil {
		return nil, err
	}

	var roles ListRolesResponse
	if err := decodeJSON(resp, &roles, http.StatusOK); err != nil {
		return nil, err
	}
	return &roles, nil
}
