package core

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/filter"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCore connects to the database named by CONDUIT_TEST_DSN and resets
// its tables. Tests depending on it are skipped when the variable is unset.
func newTestCore(t *testing.T) (*Core, databaseutils.Session) {
	t.Helper()

	dsn := os.Getenv("CONDUIT_TEST_DSN")
	if dsn == "" {
		t.Skip("set CONDUIT_TEST_DSN to run database tests")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	require.NoError(t, db.Ping())

	_, err = db.Exec(`TRUNCATE followers, favourite_articles, article_tags, tags, comments, articles, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCore(db, logger, databaseutils.NewSQLTemplate(db, 5*time.Second)), databaseutils.NewSession(db)
}

func mustCreateUser(t *testing.T, c *Core, username string) *auth.User {
	t.Helper()

	user := &auth.User{
		Email:    username + "@example.com",
		Username: username,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, c.CreateNewUser(context.Background(), user))
	return user
}

func mustCreateArticle(t *testing.T, c *Core, authorEmail, title string, tags ...string) *models.Article {
	t.Helper()

	article, _, err := c.CreateArticle(context.Background(), authorEmail, &models.Article{
		Title:       title,
		Description: "description",
		Body:        "body",
	}, tags)
	require.NoError(t, err)
	return article
}

func TestCreateNewUserDuplicates(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	mustCreateUser(t, c, "alice")

	sameEmail := &auth.User{Email: "alice@example.com", Username: "someone-else"}
	require.NoError(t, sameEmail.SetPassword("password123"))
	assert.ErrorIs(t, c.CreateNewUser(ctx, sameEmail), ErrDuplicateEmail)

	sameUsername := &auth.User{Email: "other@example.com", Username: "alice"}
	require.NoError(t, sameUsername.SetPassword("password123"))
	assert.ErrorIs(t, c.CreateNewUser(ctx, sameUsername), ErrDuplicateUsername)
}

func TestSlugCollisionProbe(t *testing.T) {
	c, _ := newTestCore(t)

	author := mustCreateUser(t, c, "alice")

	first := mustCreateArticle(t, c, author.Email, "Golang Guide")
	second := mustCreateArticle(t, c, author.Email, "Golang Guide")
	third := mustCreateArticle(t, c, author.Email, "Golang Guide")

	assert.Equal(t, "golang-guide", first.Slug)
	assert.Equal(t, "golang-guide-1", second.Slug)
	assert.Equal(t, "golang-guide-2", third.Slug)
}

func TestCreateArticleWithTags(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	author := mustCreateUser(t, c, "alice")

	article, tags, err := c.CreateArticle(ctx, author.Email, &models.Article{
		Title:       "Tagged Article",
		Description: "description",
		Body:        "body",
	}, []string{"go", "web"})
	require.NoError(t, err)
	require.Len(t, tags, 2)

	tagsByArticle, err := c.GetTagsByArticleId(ctx, []int64{article.ID})
	require.NoError(t, err)
	require.Len(t, tagsByArticle[article.ID], 2)

	// Reusing a tag on another article must not duplicate it.
	mustCreateArticle(t, c, author.Email, "Second Tagged Article", "go")

	allTags, err := c.GetAllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "web"}, allTags)
}

func TestCreateArticleWithRepeatedTags(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	author := mustCreateUser(t, c, "alice")

	article, tags, err := c.CreateArticle(ctx, author.Email, &models.Article{
		Title:       "Repeated Tags",
		Description: "description",
		Body:        "body",
	}, []string{"go", "go", " go"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0].Name)

	tagsByArticle, err := c.GetTagsByArticleId(ctx, []int64{article.ID})
	require.NoError(t, err)
	assert.Len(t, tagsByArticle[article.ID], 1)
}

func TestFavoriteIsIdempotent(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	author := mustCreateUser(t, c, "alice")
	reader := mustCreateUser(t, c, "bob")
	article := mustCreateArticle(t, c, author.Email, "Some Article")

	require.NoError(t, c.FavoriteArticle(ctx, article.Slug, reader.Email))
	require.NoError(t, c.FavoriteArticle(ctx, article.Slug, reader.Email))

	count, err := c.FavouriteArticleCount(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	favorited, err := c.IsFavorited(ctx, article.ID, reader.Email)
	require.NoError(t, err)
	assert.True(t, favorited)

	require.NoError(t, c.UnfavoriteArticle(ctx, article.Slug, reader.Email))
	require.NoError(t, c.UnfavoriteArticle(ctx, article.Slug, reader.Email))

	count, err = c.FavouriteArticleCount(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestFollowLifecycle(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, c, "alice")
	bob := mustCreateUser(t, c, "bob")

	profile, err := c.FollowUser(ctx, alice.Email, bob.Username)
	require.NoError(t, err)
	assert.True(t, profile.Following)
	assert.Equal(t, int64(1), profile.FollowersCount)

	_, err = c.FollowUser(ctx, alice.Email, bob.Username)
	assert.ErrorIs(t, err, UserIsAlreadyFollowed)

	_, err = c.FollowUser(ctx, alice.Email, alice.Username)
	assert.ErrorIs(t, err, SelfFollowNotAllowed)

	following, err := c.GetFollowingUserList(ctx, alice.Username)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, bob.Username, following[0].Username)

	profile, err = c.UnfollowUser(ctx, alice.Email, bob.Username)
	require.NoError(t, err)
	assert.False(t, profile.Following)
	assert.Equal(t, int64(0), profile.FollowersCount)

	_, err = c.UnfollowUser(ctx, alice.Email, bob.Username)
	assert.ErrorIs(t, err, UserIsNotFollowed)
}

func TestGetProfile(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, c, "alice")
	bob := mustCreateUser(t, c, "bob")

	_, err := c.FollowUser(ctx, alice.Email, bob.Username)
	require.NoError(t, err)

	// An anonymous viewer sees the counts but never a following flag.
	profile, err := c.GetProfile(ctx, bob.Username, "")
	require.NoError(t, err)
	assert.False(t, profile.Following)
	assert.Equal(t, int64(1), profile.FollowersCount)

	_, err = c.GetProfile(ctx, "nobody", "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateArticleOwnership(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	author := mustCreateUser(t, c, "alice")
	intruder := mustCreateUser(t, c, "bob")
	article := mustCreateArticle(t, c, author.Email, "Original Title")

	_, err := c.UpdateArticle(ctx, article.Slug, intruder.Email, "Hijacked", "d", "b")
	assert.ErrorIs(t, err, NotArticleAuthor)

	err = c.DeleteArticle(ctx, article.Slug, intruder.Email)
	assert.ErrorIs(t, err, NotArticleAuthor)

	updated, err := c.UpdateArticle(ctx, article.Slug, author.Email, "New Title", "new description", "new body")
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)
	// The slug stays what it was at creation time.
	assert.Equal(t, article.Slug, updated.Slug)

	require.NoError(t, c.DeleteArticle(ctx, article.Slug, author.Email))
	_, err = c.GetArticleBySlug(ctx, article.Slug)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestDeleteCommentRules(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	author := mustCreateUser(t, c, "alice")
	commenter := mustCreateUser(t, c, "bob")
	intruder := mustCreateUser(t, c, "carol")

	article := mustCreateArticle(t, c, author.Email, "First Article")
	otherArticle := mustCreateArticle(t, c, author.Email, "Second Article")

	comment, err := c.CreateComment(ctx, article.Slug, "a comment", commenter.Email)
	require.NoError(t, err)

	err = c.DeleteComment(ctx, otherArticle.Slug, comment.ID, commenter.Email)
	assert.ErrorIs(t, err, CommentNotInArticle)

	err = c.DeleteComment(ctx, article.Slug, comment.ID, intruder.Email)
	assert.ErrorIs(t, err, NotCommentAuthor)

	require.NoError(t, c.DeleteComment(ctx, article.Slug, comment.ID, commenter.Email))

	_, err = c.GetCommentByID(ctx, comment.ID)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentsCountIsLenient(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	count, err := c.CommentsCount(ctx, "no-such-slug")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = c.GetComments(ctx, "no-such-slug")
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestUpdateUserProfilePartial(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, c, "alice")
	mustCreateUser(t, c, "bob")

	updated, err := c.UpdateUserProfile(ctx, alice.Email, UserChanges{Bio: "just a bio"})
	require.NoError(t, err)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "just a bio", *updated.Bio)
	assert.Equal(t, alice.Username, updated.Username)
	assert.Equal(t, alice.Email, updated.Email)

	// Re-submitting the current username is not a collision.
	_, err = c.UpdateUserProfile(ctx, alice.Email, UserChanges{Username: "alice"})
	require.NoError(t, err)

	_, err = c.UpdateUserProfile(ctx, alice.Email, UserChanges{Username: "bob"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = c.UpdateUserProfile(ctx, alice.Email, UserChanges{Email: "bob@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	updated, err = c.UpdateUserProfile(ctx, alice.Email, UserChanges{Password: "new-password"})
	require.NoError(t, err)

	matched, err := updated.IsPasswordMatch("new-password")
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestGetArticlesFiltering(t *testing.T) {
	c, _ := newTestCore(t)
	ctx := context.Background()

	alice := mustCreateUser(t, c, "alice")
	bob := mustCreateUser(t, c, "bob")

	mustCreateArticle(t, c, alice.Email, "Alice One", "go")
	mustCreateArticle(t, c, alice.Email, "Alice Two")
	mustCreateArticle(t, c, bob.Email, "Bob One", "go")

	filters := filter.NewFilter(20, 0)

	all, err := c.GetArticles(ctx, filters)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "bob-one", all[0].Slug)

	total, err := c.CountArticles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	byAuthor, err := c.GetArticlesByAuthor(ctx, "alice", filters)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)

	byTag, err := c.GetArticlesByTag(ctx, "go", filters)
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	page, err := c.GetArticles(ctx, filter.NewFilter(2, 2))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "alice-one", page[0].Slug)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	c, session := newTestCore(t)
	ctx := context.Background()

	user := &auth.User{Email: "ghost@example.com", Username: "ghost"}
	require.NoError(t, user.SetPassword("password123"))

	err := session.DoTransactionally(ctx, func(txCtx context.Context) error {
		if err := c.CreateNewUser(txCtx, user); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	exists, err := c.ExistsByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
