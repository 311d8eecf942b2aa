package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/core"
	"github.com/siahsang/conduit/internal/filter"
	"github.com/siahsang/conduit/internal/utils/collectionutils"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/internal/utils/functional"
	"github.com/siahsang/conduit/internal/validator"
	"github.com/siahsang/conduit/models"
)

type authorView struct {
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

type articleView struct {
	Slug           string     `json:"slug"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Body           string     `json:"body"`
	TagList        []string   `json:"tagList"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Favorited      bool       `json:"favorited"`
	FavoritesCount int64      `json:"favoritesCount"`
	Author         authorView `json:"author"`
}

func (app *application) createArticle(w http.ResponseWriter, r *http.Request) {
	type CreateArticleRequest struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Body        string   `json:"body"`
		TagList     []string `json:"tagList"`
	}

	var createArticleRequest CreateArticleRequest

	if err := app.readJSON(w, r, &createArticleRequest); err != nil {
		app.malformedRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.CheckNotBlank(createArticleRequest.Title, "title", "must be provided")
	v.CheckNotBlank(createArticleRequest.Description, "description", "must be provided")
	v.CheckNotBlank(createArticleRequest.Body, "body", "must be provided")
	for _, tag := range createArticleRequest.TagList {
		v.CheckNotBlank(tag, "tagList", "must not contain blank tags")
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

	type createResult struct {
		article *models.Article
		tags    []*models.Tag
	}

	result, err := databaseutils.DoTransactionally(r.Context(), app.session, func(txCtx context.Context) (createResult, error) {
		article := &models.Article{
			Title:       createArticleRequest.Title,
			Description: createArticleRequest.Description,
			Body:        createArticleRequest.Body,
		}

		createdArticle, createdTags, err := app.core.CreateArticle(txCtx, user.Email, article, createArticleRequest.TagList)
		if err != nil {
			return createResult{}, err
		}
		return createResult{article: createdArticle, tags: createdTags}, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicatedSlug):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_CREATE_FAILED", "An article with a similar title already exists", err)
		case errors.Is(err, core.ErrUserNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_CREATE_FAILED", "Author not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	view := articleView{
		Slug:        result.article.Slug,
		Title:       result.article.Title,
		Description: result.article.Description,
		Body:        result.article.Body,
		TagList: functional.Map(result.tags, func(tag *models.Tag) string {
			return tag.Name
		}),
		CreatedAt: result.article.CreatedAt,
		UpdatedAt: result.article.UpdatedAt,
		Author: authorView{
			Username: user.Username,
			Bio:      user.Bio,
			Image:    user.Image,
		},
	}
	if view.TagList == nil {
		view.TagList = []string{}
	}

	response := successMessageResponse(envelope{"article": view}, "Article created successfully")
	if err := app.writeJSON(w, http.StatusCreated, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) getArticle(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	article, err := app.core.GetArticleBySlug(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusNotFound, "ARTICLE_NOT_FOUND", "Article not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	viewer, _ := app.auth.GetAuthenticatedUser(r)

	view, err := app.articleView(r.Context(), article, viewer)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	if err := app.writeJSON(w, http.StatusOK, successResponse(envelope{"article": view}), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) getArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	v := validator.New()
	filters := filter.NewFilter(
		app.readInt(query, "limit", 20, v),
		app.readInt(query, "offset", 0, v),
	)
	filter.ValidateFilters(filters, v)

	if !v.IsValid() {
		app.validationErrorResponse(w, r, v.Errors)
		return
	}

	author := app.readString(query, "author", "")
	tag := app.readString(query, "tag", "")

	var (
		articles      []*models.Article
		articlesCount int64
		err           error
	)

	switch {
	case author != "":
		articles, err = app.core.GetArticlesByAuthor(r.Context(), author, filters)
		articlesCount = int64(len(articles))
	case tag != "":
		articles, err = app.core.GetArticlesByTag(r.Context(), tag, filters)
		articlesCount = int64(len(articles))
	default:
		articles, err = app.core.GetArticles(r.Context(), filters)
		if err == nil {
			articlesCount, err = app.core.CountArticles(r.Context())
		}
	}

	if err != nil {
		app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLES_FETCH_FAILED", "Failed to fetch articles", err)
		return
	}

	viewer, _ := app.auth.GetAuthenticatedUser(r)

	views, err := app.multiArticleViews(r.Context(), articles, viewer)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	data := envelope{
		"articles":      views,
		"articlesCount": articlesCount,
	}
	if err := app.writeJSON(w, http.StatusOK, successResponse(data), nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) updateArticle(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	type UpdateArticleRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Body        string `json:"body"`
	}

	var updateArticleRequest UpdateArticleRequest

	if err := app.readJSON(w, r, &updateArticleRequest); err != nil {
		app.malformedRequestResponse(w, r, err)
		return
	}

	v := validator.New()
	v.CheckNotBlank(updateArticleRequest.Title, "title", "must be provided")
	v.CheckNotBlank(updateArticleRequest.Description, "description", "must be provided")
	v.CheckNotBlank(updateArticleRequest.Body, "body", "must be provided")

	if !v.IsValid() {
		app.validationErrorResponse(w, r, v.Errors)
		return
	}

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	updatedArticle, err := databaseutils.DoTransactionally(r.Context(), app.session, func(txCtx context.Context) (*models.Article, error) {
		return app.core.UpdateArticle(txCtx, slug, user.Email,
			updateArticleRequest.Title, updateArticleRequest.Description, updateArticleRequest.Body)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_UPDATE_FAILED", "Article not found", err)
		case errors.Is(err, core.NotArticleAuthor):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_UPDATE_FAILED", "Only the author can update the article", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	view, err := app.articleView(r.Context(), updatedArticle, user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	response := successMessageResponse(envelope{"article": view}, "Article updated successfully")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) deleteArticle(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	err = app.session.DoTransactionally(r.Context(), func(txCtx context.Context) error {
		return app.core.DeleteArticle(txCtx, slug, user.Email)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_DELETE_FAILED", "Article not found", err)
		case errors.Is(err, core.NotArticleAuthor):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_DELETE_FAILED", "Only the author can delete the article", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	response := successMessageResponse(nil, "Article deleted successfully")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) favoriteArticle(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	err = app.session.DoTransactionally(r.Context(), func(txCtx context.Context) error {
		return app.core.FavoriteArticle(txCtx, slug, user.Email)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_FAVORITE_FAILED", "Article not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	article, err := app.core.GetArticleBySlug(r.Context(), slug)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	view, err := app.articleView(r.Context(), article, user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	response := successMessageResponse(envelope{"article": view}, "Article added to favorites")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

func (app *application) unfavoriteArticle(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	slug := params.ByName("slug")

	user, err := app.auth.GetAuthenticatedUser(r)
	if err != nil {
		app.authenticationRequiredResponse(w, r, err)
		return
	}

	err = app.session.DoTransactionally(r.Context(), func(txCtx context.Context) error {
		return app.core.UnfavoriteArticle(txCtx, slug, user.Email)
	})

	if err != nil {
		switch {
		case errors.Is(err, core.ErrArticleNotFound):
			app.operationFailedResponse(w, r, http.StatusBadRequest, "ARTICLE_UNFAVORITE_FAILED", "Article not found", err)
		default:
			app.internalErrorResponse(w, r, err)
		}
		return
	}

	article, err := app.core.GetArticleBySlug(r.Context(), slug)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	view, err := app.articleView(r.Context(), article, user)
	if err != nil {
		app.internalErrorResponse(w, r, err)
		return
	}

	response := successMessageResponse(envelope{"article": view}, "Article removed from favorites")
	if err := app.writeJSON(w, http.StatusOK, response, nil); err != nil {
		app.internalErrorResponse(w, r, err)
	}
}

// articleView assembles the response view of a single article. A nil viewer
// sees favorited as false.
func (app *application) articleView(ctx context.Context, article *models.Article, viewer *auth.User) (*articleView, error) {
	views, err := app.multiArticleViews(ctx, []*models.Article{article}, viewer)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// multiArticleViews assembles the views of a page of articles with a fixed
// number of queries regardless of page size.
func (app *application) multiArticleViews(ctx context.Context, articles []*models.Article, viewer *auth.User) ([]*articleView, error) {
	articleIdList := functional.Map(articles, func(article *models.Article) int64 {
		return article.ID
	})

	tagsByArticleId, err := app.core.GetTagsByArticleId(ctx, articleIdList)
	if err != nil {
		return nil, err
	}

	favouriteByArticleId, err := app.core.FavouriteArticleByArticleId(ctx, articleIdList, viewer)
	if err != nil {
		return nil, err
	}

	favouriteCountByArticleId, err := app.core.FavouriteCountByArticleId(ctx, articleIdList)
	if err != nil {
		return nil, err
	}

	authorIdList := functional.Map(articles, func(article *models.Article) int64 {
		return article.AuthorID
	})
	authors, err := app.core.GetUsersByIdList(ctx, authorIdList)
	if err != nil {
		return nil, err
	}
	authorsById := collectionutils.Associate(authors, func(user *auth.User) (int64, *auth.User) {
		return user.ID, user
	})

	views := make([]*articleView, 0, len(articles))
	for _, article := range articles {
		tags := collectionutils.GetOrDefault(tagsByArticleId, article.ID, []models.Tag{})
		tagNames := functional.Map(tags, func(tag models.Tag) string {
			return tag.Name
		})

		view := &articleView{
			Slug:           article.Slug,
			Title:          article.Title,
			Description:    article.Description,
			Body:           article.Body,
			TagList:        tagNames,
			CreatedAt:      article.CreatedAt,
			UpdatedAt:      article.UpdatedAt,
			Favorited:      collectionutils.GetOrDefault(favouriteByArticleId, article.ID, false),
			FavoritesCount: collectionutils.GetOrDefault(favouriteCountByArticleId, article.ID, 0),
		}

		if author, ok := authorsById[article.AuthorID]; ok {
			view.Author = authorView{
				Username: author.Username,
				Bio:      author.Bio,
				Image:    author.Image,
			}
		}

		views = append(views, view)
	}

	return views, nil
}
