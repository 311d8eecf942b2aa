package main

import (
	"net/http"
)

func (app *application) getTags(w http.ResponseWriter, r *http.Request) {
	tags, err := app.core.GetAllTags(r.Context())
	if err != nil {
		app.operationFailedResponse(w, r, http.StatusBadRequest, "TAGS_FETCH_FAILED", "Failed to fetch tags", err)
		return
	}

	if tags == nil {
		tags = []string{}
	}

	if err := app.writeJSON(w, http.StatusOK, successResponse(envelope{"tags": tags}), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}
