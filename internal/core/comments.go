package core

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/models"
)

var (
	ErrCommentNotFound  = xerrors.Message("Comment not found")
	NotCommentAuthor    = xerrors.Message("Only the author can delete the comment")
	CommentNotInArticle = xerrors.Message("Comment does not belong to the article")
)

// CreateComment persists a comment on the article with the given slug,
// authored by the user identified by email.
func (c *Core) CreateComment(ctx context.Context, articleSlug string, body string, authorEmail string) (*models.Comment, error) {
	article, err := c.GetArticleBySlug(ctx, articleSlug)
	if err != nil {
		return nil, xerrors.New(err)
	}

	author, err := c.GetUserByEmail(ctx, authorEmail)
	if err != nil {
		return nil, xerrors.New(err)
	}

	const insertSQL = `
		INSERT INTO comments (body, created_at, updated_at, author_id, article_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, body, created_at, updated_at, author_id, article_id
	`

	now := time.Now()
	newComment, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, insertSQL, scanComment,
		body, now, now, author.ID, article.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return newComment, nil
}

// GetComments returns every comment of the article with the given slug,
// oldest first. Unlike CommentsCount it fails when the article is missing.
func (c *Core) GetComments(ctx context.Context, articleSlug string) ([]*models.Comment, error) {
	article, err := c.GetArticleBySlug(ctx, articleSlug)
	if err != nil {
		return nil, xerrors.New(err)
	}

	const query = `
		SELECT id, body, created_at, updated_at, author_id, article_id
		FROM comments
		WHERE article_id = $1
		ORDER BY created_at ASC, id ASC
	`

	comments, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, scanComment, article.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return comments, nil
}

func (c *Core) GetCommentByID(ctx context.Context, commentId int64) (*models.Comment, error) {
	const query = `
		SELECT id, body, created_at, updated_at, author_id, article_id
		FROM comments
		WHERE id = $1
	`

	comment, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, scanComment, commentId)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, xerrors.New(ErrCommentNotFound)
		default:
			return nil, xerrors.New(err)
		}
	}

	return comment, nil
}

// DeleteComment removes a comment. The comment must belong to the article
// named in the request path (a mismatch is its own error, so a valid comment
// ID cannot be deleted through another article's URL), and only the comment's
// author may delete it.
func (c *Core) DeleteComment(ctx context.Context, articleSlug string, commentId int64, requesterEmail string) error {
	article, err := c.GetArticleBySlug(ctx, articleSlug)
	if err != nil {
		return xerrors.New(err)
	}

	comment, err := c.GetCommentByID(ctx, commentId)
	if err != nil {
		return xerrors.New(err)
	}

	if comment.ArticleID != article.ID {
		return xerrors.New(CommentNotInArticle)
	}

	requester, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return xerrors.New(err)
	}

	if requester.ID != comment.AuthorID {
		return xerrors.New(NotCommentAuthor)
	}

	const deleteSQL = `
		DELETE FROM comments WHERE id = $1
	`

	if _, err := databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, deleteSQL, commentId); err != nil {
		return xerrors.New(err)
	}

	return nil
}

// CommentsCount counts the comments of the article with the given slug. It
// performs no existence check: an unknown slug counts as zero.
func (c *Core) CommentsCount(ctx context.Context, articleSlug string) (int64, error) {
	const query = `
		SELECT COUNT(*)
		FROM comments c JOIN articles a ON c.article_id = a.id
		WHERE a.slug = $1
	`

	return c.countQuery(ctx, query, articleSlug)
}

func scanComment(rows *sql.Rows) (*models.Comment, error) {
	comment := &models.Comment{}
	if err := rows.Scan(
		&comment.ID,
		&comment.Body,
		&comment.CreatedAt,
		&comment.UpdatedAt,
		&comment.AuthorID,
		&comment.ArticleID,
	); err != nil {
		return nil, xerrors.New(err)
	}
	return comment, nil
}
