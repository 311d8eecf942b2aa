package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/core"
	"github.com/siahsang/conduit/internal/utils/collectionutils"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/internal/utils/functional"
	"github.com/siahsang/conduit/internal/validator"
	"github.com/siahsang/conduit/models"
)

type commentView struct {
	ID        int64      `json:"id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Author    authorView `json:"author"`
}

func (app *application) createComment(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	type CreateCommentRequest struct {
		Body string `json:"body"`
	}

	var createCommentRequest CreateCommentRequest

	if err := app.readJSON(w, r, &createCommentRequest); err != nil {
		app.malformedRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.CheckNotBlank(createCommentRequest.Body, "body", "must be provided")

	if !v.IsValid() {
		app.validationErrorResponse(w, r, v.Errors)
		return
	}

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	comment, err := databaseutils.DoTransactionally(r.Context(), app.session, func(txCtx context.Context) (*models.Comment, error) {
		return app.core.CreateComment(txCtx, slug, createCommentRequest.Body, user.Email)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENT_CREATE_FAILED", "Article not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	view := commentView{
		ID:        comment.ID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
		Author: authorView{
			Username: user.Username,
			Bio:      user.Bio,
			Image:    user.Image,
		},
	}

	response := successMessageResponse(envelope{"comment": view}, "Comment created successfully")
	if err := app.writeJSON(w, http.StatusCreated, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) getComments(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	comments, err := app.core.GetComments(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENTS_FETCH_FAILED", "Article not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	commentsCount, err := app.core.CommentsCount(r.Context(), slug)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	authorIdList := functional.Map(comments, func(comment *models.Comment) int64 {
		return comment.AuthorID
	})
	authors, err := app.core.GetUsersByIdList(r.Context(), authorIdList)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}
	authorsById := collectionutils.Associate(authors, func(user *auth.User) (int64, *auth.User) {
		return user.ID, user
	})

	views := make([]commentView, 0, len(comments))
	for _, comment := range comments {
		view := commentView{
			ID:        comment.ID,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
			UpdatedAt: comment.UpdatedAt,
		}
		if author, ok := authorsById[comment.AuthorID]; ok {
			view.Author = authorView{
				Username: author.Username,
				Bio:      author.Bio,
				Image:    author.Image,
			}
		}
		views = append(views, view)
	}

	data := envelope{
		"comments":      views,
		"commentsCount": commentsCount,
	}
	if err := app.writeJSON(w, http.StatusOK, successResponse(data), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteComment(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	commentId, err := strconv.ParseInt(params.ByName("id"), 10, 64)
	if err != nil {
		app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENT_DELETE_FAILED", "Invalid comment id", xerrors.New(err))
		return
	}

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	err = app.session.DoTransactionally(r.Context(), func(txCtx context.Context) error {
		return app.core.DeleteComment(txCtx, slug, commentId, user.Email)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENT_DELETE_FAILED", "Article not found", err)
		case errors.Is(err, core.ErrCommentNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENT_DELETE_FAILED", "Comment not found", err)
		case errors.Is(err, core.CommentNotInArticle):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENT_DELETE_FAILED", "Comment does not belong to the article", err)
		case errors.Is(err, core.NotCommentAuthor):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "COMMENT_DELETE_FAILED", "Only the author can delete the comment", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	response := successMessageResponse(nil, "Comment deleted successfully")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}
