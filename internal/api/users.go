package api

import (
	"context"
	"fmt"

	"github.com/metrolabs/equiptrack/internal/httpclient"
	"github.com/metrolabs/equiptrack/internal/infra/security"
)

// UsersAPI covers account administration. All endpoints require an admin
// session server-side; passwords additionally pass the local strength
// policy before they are sent.
type UsersAPI struct {
	client *httpclient.Client
}

// CreateUserRequest is the payload for registering an account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// UpdateUserRequest is the payload for changing an account. Nil fields are
// left untouched by the server.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	IsAdmin  *bool   `json:"is_admin,omitempty"`
}

// List returns accounts with the usual pagination window.
func (u *UsersAPI) List(ctx context.Context, params ListParams) ([]User, error) {
	var users []User
	err := u.client.Get(ctx, withQuery("/api/users/", params.values()), &users)
	return users, err
}

// Get returns one account.
func (u *UsersAPI) Get(ctx context.Context, id int64) (User, error) {
	var user User
	err := u.client.Get(ctx, fmt.Sprintf("/api/users/%d", id), &user)
	return user, err
}

// Create registers a new account after validating the password locally.
func (u *UsersAPI) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if err := security.DefaultPasswordValidator(req.Username).Validate(req.Password); err != nil {
		return User{}, err
	}
	var created User
	err := u.client.Post(ctx, "/api/users/", req, &created)
	return created, err
}

// Update changes an account. A new password is strength-checked first.
func (u *UsersAPI) Update(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	if req.Password != nil {
		username := ""
		if req.Username != nil {
			username = *req.Username
		}
		if err := security.DefaultPasswordValidator(username).Validate(*req.Password); err != nil {
			return User{}, err
		}
	}
	var updated User
	err := u.client.Put(ctx, fmt.Sprintf("/api/users/%d", id), req, &updated)
	return updated, err
}

// ChangePassword sets a new password for an account, requiring it to differ
// from the current one and meet the strength policy.
func (u *UsersAPI) ChangePassword(ctx context.Context, id int64, username, currentPassword, newPassword string) error {
	validator := security.NewPasswordValidator(
		security.RequireDifferentFrom(currentPassword),
	)
	if err := validator.Validate(newPassword); err != nil {
		return err
	}
	if err := security.DefaultPasswordValidator(username).Validate(newPassword); err != nil {
		return err
	}
	req := UpdateUserRequest{Password: &newPassword}
	return u.client.Put(ctx, fmt.Sprintf("/api/users/%d", id), req, nil)
}

// Delete removes an account. The server refuses when the account still
// manages equipment categories.
func (u *UsersAPI) Delete(ctx context.Context, id int64) error {
	return u.client.Delete(ctx, fmt.Sprintf("/api/users/%d", id), nil)
}

// Categories returns the equipment categories an account manages.
func (u *UsersAPI) Categories(ctx context.Context, id int64) ([]Category, error) {
	var categories []Category
	err := u.client.Get(ctx, fmt.Sprintf("/api/users/%d/categories", id), &categories)
	return categories, err
}

// AssignCategory grants an account management of one category.
func (u *UsersAPI) AssignCategory(ctx context.Context, userID, categoryID int64) error {
	return u.client.Post(ctx, fmt.Sprintf("/api/users/%d/categories/%d", userID, categoryID), nil, nil)
}

// SetCategories replaces the full category set an account manages.
func (u *UsersAPI) SetCategories(ctx context.Context, userID int64, categoryIDs []int64) error {
	payload := map[string]any{"category_ids": categoryIDs}
	return u.client.Put(ctx, fmt.Sprintf("/api/users/%d/categories", userID), payload, nil)
}
