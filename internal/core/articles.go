package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/filter"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/models"
)

var (
	ErrDuplicatedSlug  = xerrors.Message("Duplicate slug")
	ErrArticleNotFound = xerrors.Message("Article not found")
	NotArticleAuthor   = xerrors.Message("Only the author can modify the article")
)

// CreateArticle persists a new article for the author identified by email,
// deriving a unique slug from the title and attaching the given tags. The
// caller is expected to run it inside a transaction so the slug probe and the
// insert share one boundary; a lost slug race still surfaces as
// ErrDuplicatedSlug from the unique constraint and may be retried.
func (c *Core) CreateArticle(ctx context.Context, authorEmail string, article *models.Article, tagNames []string) (*models.Article, []*models.Tag, error) {
	author, err := c.GetUserByEmail(ctx, authorEmail)
	if err != nil {
		return nil, nil, xerrors.New(err)
	}

	slug, err := c.uniqueSlug(ctx, article.Title)
	if err != nil {
		return nil, nil, xerrors.New(err)
	}

	const insertSQL = `
		INSERT INTO articles (slug, title, description, body, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, slug, title, description, body, author_id, created_at, updated_at
	`

	now := time.Now()
	createdArticle, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, insertSQL, scanArticle,
		slug, article.Title, article.Description, article.Body, author.ID, now, now)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), `duplicate key value violates unique constraint`):
			return nil, nil, xerrors.New(ErrDuplicatedSlug)
		default:
			return nil, nil, xerrors.New(err)
		}
	}

	var createdTags []*models.Tag
	if len(tagNames) > 0 {
		// Dedupe after trimming: the tag upsert cannot touch the same row
		// twice in one statement.
		seen := make(map[string]bool, len(tagNames))
		tagModels := make([]*models.Tag, 0, len(tagNames))
		for _, name := range tagNames {
			name = strings.TrimSpace(name)
			if seen[name] {
				continue
			}
			seen[name] = true
			tagModels = append(tagModels, &models.Tag{Name: name})
		}

		createdTags, err = c.CreateTag(ctx, tagModels)
		if err != nil {
			return nil, nil, xerrors.New(err)
		}

		if err := c.AddTagsToArticle(ctx, createdArticle.ID, createdTags); err != nil {
			return nil, nil, xerrors.New(err)
		}
	}

	c.log.Info("Article created successfully", "article_id", createdArticle.ID, "slug", createdArticle.Slug)
	return createdArticle, createdTags, nil
}

// uniqueSlug probes the base slug and then base-1, base-2, ... until an
// unused candidate is found. Tie-breaking is strictly by smallest unused
// suffix.
func (c *Core) uniqueSlug(ctx context.Context, title string) (string, error) {
	baseSlug := CreateSlug(title)

	candidate := baseSlug
	for attempt := 1; ; attempt++ {
		exists, err := c.SlugExists(ctx, candidate)
		if err != nil {
			return "", xerrors.New(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", baseSlug, attempt)
	}
}

func (c *Core) SlugExists(ctx context.Context, slug string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM articles WHERE slug = $1
		)
	`

	exists, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (bool, error) {
		var exists bool
		if err := rows.Scan(&exists); err != nil {
			return false, xerrors.New(err)
		}
		return exists, nil
	}, slug)

	if err != nil {
		return false, xerrors.New(err)
	}

	return exists, nil
}

func (c *Core) GetArticleBySlug(ctx context.Context, slug string) (*models.Article, error) {
	const query = `
		SELECT id, slug, title, description, body, author_id, created_at, updated_at
		FROM articles
		WHERE slug = $1
	`

	article, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, scanArticle, slug)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, xerrors.New(ErrArticleNotFound)
		default:
			return nil, xerrors.New(err)
		}
	}

	return article, nil
}

func (c *Core) GetArticles(ctx context.Context, filters filter.Filter) ([]*models.Article, error) {
	const query = `
		SELECT id, slug, title, description, body, author_id, created_at, updated_at
		FROM articles
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	articles, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, scanArticle, filters.Limit, filters.Offset)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return articles, nil
}

func (c *Core) GetArticlesByAuthor(ctx context.Context, authorUsername string, filters filter.Filter) ([]*models.Article, error) {
	const query = `
		SELECT a.id, a.slug, a.title, a.description, a.body, a.author_id, a.created_at, a.updated_at
		FROM articles a JOIN users u ON a.author_id = u.id
		WHERE u.username = $1
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $2 OFFSET $3
	`

	articles, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, scanArticle, authorUsername, filters.Limit, filters.Offset)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return articles, nil
}

func (c *Core) GetArticlesByTag(ctx context.Context, tagName string, filters filter.Filter) ([]*models.Article, error) {
	const query = `
		SELECT a.id, a.slug, a.title, a.description, a.body, a.author_id, a.created_at, a.updated_at
		FROM articles a
			JOIN article_tags at ON a.id = at.article_id
			JOIN tags t ON at.tag_id = t.id
		WHERE t.name = $1
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $2 OFFSET $3
	`

	articles, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, scanArticle, tagName, filters.Limit, filters.Offset)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return articles, nil
}

func (c *Core) CountArticles(ctx context.Context) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM articles
	`

	return c.countQuery(ctx, query)
}

// UpdateArticle overwrites title, description and body of the article with
// the given slug. Only the author may update; the slug is never regenerated.
func (c *Core) UpdateArticle(ctx context.Context, slug string, requesterEmail string, title, description, body string) (*models.Article, error) {
	article, err := c.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, xerrors.New(err)
	}

	requester, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, xerrors.New(err)
	}

	if requester.ID != article.AuthorID {
		return nil, xerrors.New(NotArticleAuthor)
	}

	const updateSQL = `
		UPDATE articles
		SET title = $1, description = $2, body = $3, updated_at = $4
		WHERE id = $5
		RETURNING id, slug, title, description, body, author_id, created_at, updated_at
	`

	updatedArticle, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, updateSQL, scanArticle,
		title, description, body, time.Now(), article.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return updatedArticle, nil
}

// DeleteArticle removes the article with the given slug. Only the author may
// delete; comments, favorites and tag associations go with it via the
// schema's cascades.
func (c *Core) DeleteArticle(ctx context.Context, slug string, requesterEmail string) error {
	article, err := c.GetArticleBySlug(ctx, slug)
	if err != nil {
		return xerrors.New(err)
	}

	requester, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return xerrors.New(err)
	}

	if requester.ID != article.AuthorID {
		return xerrors.New(NotArticleAuthor)
	}

	const deleteSQL = `
		DELETE FROM articles WHERE id = $1
	`

	if _, err := databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, deleteSQL, article.ID); err != nil {
		return xerrors.New(err)
	}

	c.log.Info("Article deleted successfully", "article_id", article.ID, "slug", slug)
	return nil
}

// FavoriteArticle marks the article as a favorite of the requester. It is
// idempotent: favoriting an already-favorited article is a no-op.
func (c *Core) FavoriteArticle(ctx context.Context, slug string, requesterEmail string) error {
	article, err := c.GetArticleBySlug(ctx, slug)
	if err != nil {
		return xerrors.New(err)
	}

	user, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return xerrors.New(err)
	}

	const insertSQL = `
		INSERT INTO favourite_articles (user_id, article_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, article_id) DO NOTHING
	`

	if _, err := databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, insertSQL, user.ID, article.ID); err != nil {
		return xerrors.New(err)
	}

	return nil
}

// UnfavoriteArticle removes the requester's favorite of the article. It is
// idempotent: unfavoriting an article that is not favorited is a no-op.
func (c *Core) UnfavoriteArticle(ctx context.Context, slug string, requesterEmail string) error {
	article, err := c.GetArticleBySlug(ctx, slug)
	if err != nil {
		return xerrors.New(err)
	}

	user, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return xerrors.New(err)
	}

	const deleteSQL = `
		DELETE FROM favourite_articles
		WHERE user_id = $1 AND article_id = $2
	`

	if _, err := databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, deleteSQL, user.ID, article.ID); err != nil {
		return xerrors.New(err)
	}

	return nil
}

func (c *Core) IsFavouriteArticleByUser(ctx context.Context, articleId int64, user *auth.User) (bool, error) {
	if user == nil {
		return false, nil
	}

	const selectSQL = `
		SELECT EXISTS (
			SELECT 1 FROM favourite_articles WHERE user_id = $1 AND article_id = $2
		)
	`

	isFavourite, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, selectSQL, func(rows *sql.Rows) (bool, error) {
		var isFavourite bool
		if err := rows.Scan(&isFavourite); err != nil {
			return false, xerrors.New(err)
		}
		return isFavourite, nil
	}, user.ID, articleId)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, xerrors.New(err)
	}
	return isFavourite, nil
}

// IsFavorited resolves the requester by email first; an identity that does
// not resolve yields false rather than an error.
func (c *Core) IsFavorited(ctx context.Context, articleId int64, requesterEmail string) (bool, error) {
	if requesterEmail == "" {
		return false, nil
	}

	user, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, xerrors.New(err)
	}

	return c.IsFavouriteArticleByUser(ctx, articleId, user)
}

func (c *Core) FavouriteArticleCount(ctx context.Context, articleId int64) (int64, error) {
	const selectSQL = `
		SELECT COUNT(*) FROM favourite_articles WHERE article_id = $1
	`

	return c.countQuery(ctx, selectSQL, articleId)
}

// FavouriteArticleByArticleId reports which of the given articles the user
// has favorited. A nil user favorites nothing.
func (c *Core) FavouriteArticleByArticleId(ctx context.Context, articleIdList []int64, user *auth.User) (map[int64]bool, error) {
	result := make(map[int64]bool, len(articleIdList))
	if user == nil || len(articleIdList) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(articleIdList))
	args := make([]any, 0, len(articleIdList)+1)
	args = append(args, user.ID)
	for i, id := range articleIdList {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT article_id
		FROM favourite_articles
		WHERE user_id = $1 AND article_id IN (%s)
	`, strings.Join(placeholders, ", "))

	favouriteIdList, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (int64, error) {
		var articleId int64
		if err := rows.Scan(&articleId); err != nil {
			return 0, xerrors.New(err)
		}
		return articleId, nil
	}, args...)

	if err != nil {
		return nil, xerrors.New(err)
	}

	for _, id := range favouriteIdList {
		result[id] = true
	}

	return result, nil
}

func (c *Core) FavouriteCountByArticleId(ctx context.Context, articleIdList []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(articleIdList))
	if len(articleIdList) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(articleIdList))
	args := make([]any, len(articleIdList))
	for i, id := range articleIdList {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT article_id, COUNT(*)
		FROM favourite_articles
		WHERE article_id IN (%s)
		GROUP BY article_id
	`, strings.Join(placeholders, ", "))

	type articleCount struct {
		articleId int64
		count     int64
	}

	countList, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (articleCount, error) {
		var ac articleCount
		if err := rows.Scan(&ac.articleId, &ac.count); err != nil {
			return articleCount{}, xerrors.New(err)
		}
		return ac, nil
	}, args...)

	if err != nil {
		return nil, xerrors.New(err)
	}

	for _, ac := range countList {
		result[ac.articleId] = ac.count
	}

	return result, nil
}

func scanArticle(rows *sql.Rows) (*models.Article, error) {
	article := &models.Article{}
	if err := rows.Scan(
		&article.ID,
		&article.Slug,
		&article.Title,
		&article.Description,
		&article.Body,
		&article.AuthorID,
		&article.CreatedAt,
		&article.UpdatedAt,
	); err != nil {
		return nil, xerrors.New(err)
	}
	return article, nil
}
