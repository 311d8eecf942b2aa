package core

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
	"github.com/siahsang/conduit/models"
)

var (
	UserIsAlreadyFollowed = xerrors.Message("User is already followed")
	UserIsNotFollowed     = xerrors.Message("User is not followed")
	SelfFollowNotAllowed  = xerrors.Message("Users cannot follow themselves")
)

// GetProfile returns the profile view of the named user, with follower and
// following counts. The following flag is only computed when viewerEmail
// resolves to a known user; for anonymous or unknown viewers it stays false.
func (c *Core) GetProfile(ctx context.Context, username string, viewerEmail string) (*models.Profile, error) {
	user, err := c.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, xerrors.New(err)
	}

	return c.buildProfile(ctx, user, viewerEmail)
}

func (c *Core) buildProfile(ctx context.Context, user *auth.User, viewerEmail string) (*models.Profile, error) {
	profile := &models.Profile{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Bio:      user.Bio,
		Image:    user.Image,
	}

	followersCount, err := c.FollowersCount(ctx, user.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}
	profile.FollowersCount = followersCount

	followingCount, err := c.FollowingCount(ctx, user.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}
	profile.FollowingCount = followingCount

	following, err := c.IsFollowing(ctx, viewerEmail, user.Username)
	if err != nil {
		return nil, xerrors.New(err)
	}
	profile.Following = following

	return profile, nil
}

// IsFollowing reports whether the viewer follows the named user. It is
// deliberately lenient: an empty viewer identity or one that does not resolve
// yields false rather than an error, so read paths never fail on it.
func (c *Core) IsFollowing(ctx context.Context, viewerEmail string, username string) (bool, error) {
	if viewerEmail == "" {
		return false, nil
	}

	viewer, err := c.GetUserByEmail(ctx, viewerEmail)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, xerrors.New(err)
	}

	followee, err := c.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, xerrors.New(err)
	}

	return c.followEdgeExists(ctx, followee.ID, viewer.ID)
}

func (c *Core) followEdgeExists(ctx context.Context, userID, followerID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM followers WHERE user_id = $1 AND follower_id = $2
		)
	`

	exists, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (bool, error) {
		var exists bool
		if err := rows.Scan(&exists); err != nil {
			return false, xerrors.New(err)
		}
		return exists, nil
	}, userID, followerID)

	if err != nil {
		return false, xerrors.New(err)
	}

	return exists, nil
}

func (c *Core) FollowersCount(ctx context.Context, userID int64) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM followers WHERE user_id = $1
	`

	return c.countQuery(ctx, query, userID)
}

func (c *Core) FollowingCount(ctx context.Context, userID int64) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM followers WHERE follower_id = $1
	`

	return c.countQuery(ctx, query, userID)
}

func (c *Core) countQuery(ctx context.Context, query string, args ...any) (int64, error) {
	count, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (int64, error) {
		var count int64
		if err := rows.Scan(&count); err != nil {
			return 0, xerrors.New(err)
		}
		return count, nil
	}, args...)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, xerrors.New(err)
	}

	return count, nil
}

// GetFollowingUserList returns the users the named user follows.
func (c *Core) GetFollowingUserList(ctx context.Context, username string) ([]*auth.User, error) {
	user, err := c.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, xerrors.New(err)
	}

	const query = `
		SELECT u.id, u.email, u.username, u.password, u.bio, u.image
		FROM users AS u JOIN followers f ON u.id = f.user_id
		WHERE f.follower_id = $1
	`

	queryResultList, err := databaseutils.ExecuteQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (*auth.User, error) {
		var user = &auth.User{}

		if err := rows.Scan(&user.ID,
			&user.Email,
			&user.Username,
			&user.Password,
			&user.Bio,
			&user.Image); err != nil {
			return nil, xerrors.New(err)
		}
		return user, nil
	}, user.ID)

	if err != nil {
		return nil, xerrors.New(err)
	}

	return queryResultList, nil
}

// FollowUser creates the follow edge from the requester to the named user and
// returns the followee's refreshed profile. Following yourself and following
// a user twice are domain errors.
func (c *Core) FollowUser(ctx context.Context, requesterEmail string, followeeUsername string) (*models.Profile, error) {
	follower, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, xerrors.New(err)
	}

	followee, err := c.GetUserByUsername(ctx, followeeUsername)
	if err != nil {
		return nil, xerrors.New(err)
	}

	if follower.ID == followee.ID {
		return nil, xerrors.New(SelfFollowNotAllowed)
	}

	alreadyFollowed, err := c.followEdgeExists(ctx, followee.ID, follower.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}
	if alreadyFollowed {
		return nil, xerrors.New(UserIsAlreadyFollowed)
	}

	const insertSQL = `
		INSERT INTO followers (user_id, follower_id)
		VALUES ($1, $2)
	`

	_, err = databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, insertSQL, followee.ID, follower.ID)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), `duplicate key value violates unique constraint`):
			return nil, xerrors.New(UserIsAlreadyFollowed)
		default:
			return nil, xerrors.New(err)
		}
	}

	return c.GetProfile(ctx, followeeUsername, requesterEmail)
}

// UnfollowUser removes the follow edge from the requester to the named user
// and returns the followee's refreshed profile. Removing an edge that does
// not exist is a domain error.
func (c *Core) UnfollowUser(ctx context.Context, requesterEmail string, followeeUsername string) (*models.Profile, error) {
	follower, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, xerrors.New(err)
	}

	followee, err := c.GetUserByUsername(ctx, followeeUsername)
	if err != nil {
		return nil, xerrors.New(err)
	}

	const deleteSQL = `
		DELETE FROM followers
		WHERE user_id = $1 AND follower_id = $2
	`

	affected, err := databaseutils.ExecuteUpdate(c.sqlTemplate, ctx, deleteSQL, followee.ID, follower.ID)
	if err != nil {
		return nil, xerrors.New(err)
	}

	if affected == 0 {
		return nil, xerrors.New(UserIsNotFollowed)
	}

	return c.GetProfile(ctx, followeeUsername, requesterEmail)
}
