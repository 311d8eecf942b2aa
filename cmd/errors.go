package main

import (
	"log/slog"
	"net/http"

	"github.com/mdobak/go-xerrors"
)

type AppError struct {
	Code         string
	ErrorStack   error
	ErrorMessage string
	ErrorDetails map[string]string
}

func (app *application) errorResponse(w http.ResponseWriter, r *http.Request, status int, appError *AppError) {
	errorBody := map[string]any{
		"code":    appError.Code,
		"message": appError.ErrorMessage,
	}
	if len(appError.ErrorDetails) > 0 {
		errorBody["details"] = appError.ErrorDetails
	}

	var attrs []slog.Attr
	attrs = append(attrs, slog.String("request_url", r.URL.String()))
	attrs = append(attrs, slog.String("request_method", r.Method))
	attrs = append(attrs, slog.String("error_code", appError.Code))
	if appError.ErrorStack != nil {
		attrs = append(attrs, slog.String("stack", xerrors.Sprint(appError.ErrorStack)))
	}

	for key, valueData := range appError.ErrorDetails {
		attrs = append(attrs, slog.Any(key, valueData))
	}

	app.logger.LogAttrs(r.Context(), slog.LevelError, "Error in handling request", attrs...)

	err := app.writeJSON(w, status, envelope{"success": false, "error": errorBody}, nil)
	if err != nil {
		app.logger.Error(err.Error())
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// operationFailedResponse reports a failed core operation under the
// endpoint's error code.
func (app *application) operationFailedResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	app.errorResponse(w, r, status, &AppError{
		Code:         code,
		ErrorMessage: message,
		ErrorStack:   err,
	})
}

func (app *application) validationErrorResponse(w http.ResponseWriter, r *http.Request, details map[string]string) {
	app.errorResponse(w, r, http.StatusBadRequest, &AppError{
		Code:         "VALIDATION_ERROR",
		ErrorMessage: "Input data is not valid",
		ErrorDetails: details,
	})
}

func (app *application) malformedRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, &AppError{
		Code:         "VALIDATION_ERROR",
		ErrorMessage: err.Error(),
		ErrorStack:   err,
	})
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, &AppError{
		Code:         "NOT_FOUND",
		ErrorMessage: "The requested resource could not be found",
	})
}

func (app *application) internalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusInternalServerError, &AppError{
		Code:         "INTERNAL_ERROR",
		ErrorMessage: "An internal server error occurred",
		ErrorStack:   err,
	})
}

func (app *application) invalidAuthenticationTokenResponse(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, &AppError{
		Code:         "AUTHENTICATION_FAILED",
		ErrorMessage: "Invalid or missing authentication token",
		ErrorStack:   err,
	})
}

func (app *application) authenticationRequiredResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusUnauthorized, &AppError{
		Code:         "AUTHENTICATION_REQUIRED",
		ErrorMessage: "You must be authenticated to access this resource",
		ErrorStack:   err,
	})
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusTooManyRequests, &AppError{
		Code:         "RATE_LIMIT_EXCEEDED",
		ErrorMessage: "Rate limit exceeded",
	})
}
