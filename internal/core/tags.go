package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/models"
)

// CreateTag upserts the given tags by name and returns them with their
// database IDs. It runs on the caller's context, so it joins an open
// transaction when one is in flight.
func (c *Core) CreateTag(ctx context.Context, tags []*models.Tag) ([]*models.Tag, error) {
	if len(tags) == 0 {
		return nil, xerrors.New("No tags provided")
	}

	// The SQL statement will look like: INSERT INTO tags (name) VALUES ($1), ($2), ...
	valueStrings := make([]string, 0, len(tags))
	valueArgs := make([]any, 0, len(tags))

	for i, tag := range tags {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d)", i+1))
		valueArgs = append(valueArgs, tag.Name)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO tags (name)
		VALUES %s
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name
	`, strings.Join(valueStrings, ", "))

	returnedTags, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, insertSQL, func(rows *sql.Rows) (*models.Tag, error) {
		tag := &models.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, xerrors.Newf("failed to scan returned tag: %w", err)
		}
		return tag, nil
	}, valueArgs...)

	if err != nil {
		return nil, xerrors.New(err)
	}

	// Match the returned IDs to the input tags by name, since the order of
	// results isn't guaranteed to match the input.
	returnedTagsByName := make(map[string]*models.Tag, len(returnedTags))
	for _, tag := range returnedTags {
		returnedTagsByName[tag.Name] = tag
	}

	resultTags := make([]*models.Tag, 0, len(tags))
	for _, tag := range tags {
		existingTag, exists := returnedTagsByName[tag.Name]
		if !exists {
			return nil, xerrors.Newf("tag %s not found in database", tag.Name)
		}
		tag.ID = existingTag.ID
		resultTags = append(resultTags, existingTag)
	}

	return resultTags, nil
}

// AddTagsToArticle writes the article/tag associations. Re-adding an
// existing pair is a no-op.
func (c *Core) AddTagsToArticle(ctx context.Context, articleId int64, tags []*models.Tag) error {
	if len(tags) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(tags))
	valueArgs := make([]any, 0, len(tags)+1)
	valueArgs = append(valueArgs, articleId)

	for i, tag := range tags {
		valueStrings = append(valueStrings, fmt.Sprintf("($1, $%d)", i+2))
		valueArgs = append(valueArgs, tag.ID)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO article_tags (article_id, tag_id)
		VALUES %s
		ON CONFLICT (article_id, tag_id) DO NOTHING
	`, strings.Join(valueStrings, ", "))

	if _, err := databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, insertSQL, valueArgs...); err != nil {
		return xerrors.New(err)
	}

	return nil
}

// GetTagsByArticleId returns the tags of every given article, keyed by
// article ID. Articles without tags have no entry.
func (c *Core) GetTagsByArticleId(ctx context.Context, articleIdList []int64) (map[int64][]models.Tag, error) {
	result := make(map[int64][]models.Tag, len(articleIdList))
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
		SELECT at.article_id, t.id, t.name
		FROM article_tags at JOIN tags t ON at.tag_id = t.id
		WHERE at.article_id IN (%s)
		ORDER BY t.name
	`, strings.Join(placeholders, ", "))

	type articleTag struct {
		articleId int64
		tag       models.Tag
	}

	articleTagList, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (articleTag, error) {
		var at articleTag
		if err := rows.Scan(&at.articleId, &at.tag.ID, &at.tag.Name); err != nil {
			return articleTag{}, xerrors.New(err)
		}
		return at, nil
	}, args...)

	if err != nil {
		return nil, xerrors.New(err)
	}

	for _, at := range articleTagList {
		result[at.articleId] = append(result[at.articleId], at.tag)
	}

	return result, nil
}

// GetAllTags returns every distinct tag name.
func (c *Core) GetAllTags(ctx context.Context) ([]string, error) {
	const query = `
		SELECT name FROM tags ORDER BY name
	`

	tags, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (string, error) {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", xerrors.New(err)
		}
		return name, nil
	})

	if err != nil {
		return nil, xerrors.New(err)
	}

	return tags, nil
}
