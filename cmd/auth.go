package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/siahsang/conduit/internal/core"
	"github.com/siahsang/conduit/internal/validator"
)

// login exchanges form-encoded credentials for a bearer token. Unlike the
// JSON endpoints it reads application/x-www-form-urlencoded fields.
func (app *application) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.malformedRequestResponse(w, r, err)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	v := validator.New()
	v.CheckNotBlank(email, "email", "must be provided")
	v.CheckNotBlank(password, "password", "must be provided")

	if !v.IsValid() {
		app.validationErrorResponse(w, r, v.Errors)
		return
	}

	user, err := app.core.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			app.operationFailedResponse(w, r, http.StatusUnauthorized, "LOGIN_FAILED", "Invalid email or password", err)
			return
		}
		app.internalErrorResponse(w, r, err)
		return
	}

	matched, err := user.IsPasswordMatch(password)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}
	if !matched {
		app.operationFailedResponse(w, r, http.StatusUnauthorized, "LOGIN_FAILED", "Invalid email or password", nil)
		return
	}

	token, err := app.auth.GenerateToken(user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	response := envelope{
		"success":   true,
		"message":   "Login successful",
		"token":     token,
		"tokenType": "Bearer",
	}
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}
