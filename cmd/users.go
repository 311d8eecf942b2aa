package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/core"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/internal/validator"
	"github.com/siahsang/conduit/models"
)

func (app *application) registerUser(w http.ResponseWriter, r *http.Request) {
	type RegisterUserRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var registerUserRequest RegisterUserRequest

	if err := app.readJSON(w, r, &registerUserRequest); err != nil {
		app.malformedRequestResponse(w, r, err)
		return
	}

	user := &auth.User{
		Email:    strings.TrimSpace(registerUserRequest.Email),
		Username: strings.TrimSpace(registerUserRequest.Username),
	}

	v := validator.New()
	v.CheckNotBlank(user.Email, "email", "must be provided")
	v.CheckEmail(user.Email, "must be a valid email address")

	v.CheckNotBlank(user.Username, "username", "must be provided")
	v.Check(len(user.Username) >= 2 && len(user.Username) <= 50, "username", "must be between 2 and 50 characters long")

	v.CheckNotBlank(registerUserRequest.Password, "password", "must be provided")
	v.Check(len(registerUserRequest.Password) >= 6 && len(registerUserRequest.Password) <= 100, "password", "must be between 6 and 100 characters long")

	if !v.IsValid() {
		app.validationErrorResponse(w, r, v.Errors)
		return
	}

	if err := user.SetPassword(registerUserRequest.Password); err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	err := app.session.DoTransactionally(r.Context(), func(txCtx context.Context) error {
		return app.core.CreateNewUser(txCtx, user)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateEmail):
			app.operationFailedResponse(w, r, http.StatusConflict, "REGISTRATION_FAILED", "Email is already in use", err)
		case errors.Is(err, core.ErrDuplicateUsername):
			app.operationFailedResponse(w, r, http.StatusConflict, "REGISTRATION_FAILED", "Username is already in use", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusCreated, successResponse(profileFromUser(user)), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

// showUser serves both GET /api/users/me and GET /api/users/:username, since
// the router cannot register the static "me" path next to the wildcard.
func (app *application) showUser(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	if params.ByName("username") == "me" {
		app.requireAuthenticatedUser(app.getCurrentUser)(w, r)
		return
	}
	app.getUserProfile(w, r)
}

func (app *application) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.operationFailedResponse(w, r, http.StatusUnauthorized, "USER_FETCH_FAILED", "Failed to fetch the current user", err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, successResponse(profileFromUser(user)), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) getUserProfile(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	username := params.ByName("username")

	viewerEmail := ""
	if user, err := app.auth.GetAuthenticatedUser(r); err == nil {
		viewerEmail = user.Email
	}

	profile, err := app.core.GetProfile(r.Context(), username, viewerEmail)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUserNotFound):
			app.operationFailedResponse(w, r, http.StatusNotFound, "USER_NOT_FOUND", "User not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, successResponse(profile), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateUser(w http.ResponseWriter, r *http.Request) {
	type UpdateUserRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Bio      string `json:"bio"`
		Image    string `json:"image"`
		Password string `json:"password"`
	}

	var updateUserRequest UpdateUserRequest

	if err := app.readJSON(w, r, &updateUserRequest); err != nil {
		app.malformedRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	if updateUserRequest.Username != "" {
		v.Check(len(updateUserRequest.Username) >= 2 && len(updateUserRequest.Username) <= 50, "username", "must be between 2 and 50 characters long")
	}
	if updateUserRequest.Email != "" {
		v.CheckEmail(updateUserRequest.Email, "must be a valid email address")
	}
	if updateUserRequest.Password != "" {
		v.Check(len(updateUserRequest.Password) >= 6 && len(updateUserRequest.Password) <= 100, "password", "must be between 6 and 100 characters long")
	}

	if !v.IsValid() {
		app.validationErrorResponse(w, r, v.Errors)
		return
	}

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	updatedUser, err := databaseutils.DoTransactionally(r.Context(), app.session, func(txCtx context.Context) (*auth.User, error) {
		return app.core.UpdateUserProfile(txCtx, user.Email, core.UserChanges{
			Username: strings.TrimSpace(updateUserRequest.Username),
			Email:    strings.TrimSpace(updateUserRequest.Email),
			Bio:      updateUserRequest.Bio,
			Image:    updateUserRequest.Image,
			Password: updateUserRequest.Password,
		})
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateEmail):
			app.operationFailedResponse(w, r, http.StatusConflict, "USER_UPDATE_FAILED", "Email is already in use", err)
		case errors.Is(err, core.ErrDuplicateUsername):
			app.operationFailedResponse(w, r, http.StatusConflict, "USER_UPDATE_FAILED", "Username is already in use", err)
		case errors.Is(err, core.ErrUserNotFound):
			app.operationFailedResponse(w, r, http.StatusConflict, "USER_UPDATE_FAILED", "User not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	if err := app.writeJSON(w, http.StatusOK, successResponse(profileFromUser(updatedUser)), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) followUser(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	followeeUsername := params.ByName("username")

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	profile, err := databaseutils.DoTransactionally(r.Context(), app.session, func(txCtx context.Context) (*models.Profile, error) {
		return app.core.FollowUser(txCtx, user.Email, followeeUsername)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrUserNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "FOLLOW_FAILED", "User not found", err)
		case errors.Is(err, core.SelfFollowNotAllowed):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "FOLLOW_FAILED", "You cannot follow yourself", err)
		case errors.Is(err, core.UserIsAlreadyFollowed):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "FOLLOW_FAILED", "User is already followed", err)
		default:
			app.operationFailedResponse(w, r, http.StatusInternalServerError, "FOLLOW_FAILED", "An error occurred while following the user", err)
		}
		return
	}

	response := successMessageResponse(envelope{"profile": profile}, "User followed successfully")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) unfollowUser(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	followeeUsername := params.ByName("username")

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	profile, err := databaseutils.DoTransactionally(r.Context(), app.session, func(txCtx context.Context) (*models.Profile, error) {
		return app.core.UnfollowUser(txCtx, user.Email, followeeUsername)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrUserNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "UNFOLLOW_FAILED", "User not found", err)
		case errors.Is(err, core.UserIsNotFollowed):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "UNFOLLOW_FAILED", "User is not followed", err)
		default:
			app.operationFailedResponse(w, r, http.StatusInternalServerError, "UNFOLLOW_FAILED", "An error occurred while unfollowing the user", err)
		}
		return
	}

	response := successMessageResponse(envelope{"profile": profile}, "User unfollowed successfully")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

// profileFromUser builds the bare profile view of a user, without follow
// counts. Endpoints returning the caller's own account use it.
func profileFromUser(user *auth.User) *models.Profile {
	return &models.Profile{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Bio:      user.Bio,
		Image:    user.Image,
	}
}
