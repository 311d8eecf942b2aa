package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type routePolicy int

const (
	// policyPermit lets the request through with or without a principal.
	policyPermit routePolicy = iota
	// policyRequireAuth rejects requests without an authenticated principal.
	policyRequireAuth
)

type route struct {
	method  string
	path    string
	policy  routePolicy
	handler http.HandlerFunc
}

func (app *application) routes() http.Handler {
	routeTable := []route{
		{http.MethodPost, "/api/users", policyPermit, app.registerUser},
		{http.MethodPost, "/login", policyPermit, app.login},

		// GET /api/users/me is dispatched inside showUser: httprouter does
		// not allow a static "me" segment next to the ":username" wildcard.
		{http.MethodGet, "/api/users/:username", policyPermit, app.showUser},
		{http.MethodPut, "/api/users/me", policyRequireAuth, app.updateUser},
		{http.MethodPost, "/api/users/:username/follow", policyRequireAuth, app.followUser},
		{http.MethodDelete, "/api/users/:username/follow", policyRequireAuth, app.unfollowUser},

		{http.MethodPost, "/api/articles", policyRequireAuth, app.createArticle},
		{http.MethodGet, "/api/articles", policyPermit, app.getArticles},
		{http.MethodGet, "/api/articles/:slug", policyPermit, app.getArticle},
		{http.MethodPut, "/api/articles/:slug", policyRequireAuth, app.updateArticle},
		{http.MethodDelete, "/api/articles/:slug", policyRequireAuth, app.deleteArticle},
		{http.MethodPost, "/api/articles/:slug/favorite", policyRequireAuth, app.favoriteArticle},
		{http.MethodDelete, "/api/articles/:slug/favorite", policyRequireAuth, app.unfavoriteArticle},

		{http.MethodPost, "/api/articles/:slug/comments", policyRequireAuth, app.createComment},
		{http.MethodGet, "/api/articles/:slug/comments", policyPermit, app.getComments},
		{http.MethodDelete, "/api/articles/:slug/comments/:id", policyRequireAuth, app.deleteComment},

		{http.MethodGet, "/api/tags", policyPermit, app.getTags},
	}

	router := httprouter.New()
	router.NotFound = http.HandlerFunc(app.notFoundResponse)

	for _, rt := range routeTable {
		handler := rt.handler
		if rt.policy == policyRequireAuth {
			handler = app.requireAuthenticatedUser(handler)
		}
		router.HandlerFunc(rt.method, rt.path, handler)
	}

	return app.recoverPanic(app.rateLimit(app.authenticate(router)))
}
