package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/utils/databaseutils"
)

var (
	ErrDuplicateEmail    = xerrors.Message("Duplicate email")
	ErrDuplicateUsername = xerrors.Message("Duplicate username")
	ErrUserNotFound      = xerrors.Message("User not found")
)

// UserChanges carries a partial profile update. Empty fields are left
// untouched on the stored user.
type UserChanges struct {
	Username string
	Email    string
	Password string
	Bio      string
	Image    string
}

func (c *Core) CreateNewUser(ctx context.Context, user *auth.User) error {
	emailExists, err := c.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return xerrors.New(err)
	}
	if emailExists {
		return xerrors.New(ErrDuplicateEmail)
	}

	usernameExists, err := c.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return xerrors.New(err)
	}
	if usernameExists {
		return xerrors.New(ErrDuplicateUsername)
	}

	query := `
		INSERT INTO users (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	args := []any{user.Username, user.Email, user.Password}
	_, err = databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (*auth.User, error) {
		if err := rows.Scan(&user.ID); err != nil {
			return nil, xerrors.New(err)
		}
		return user, nil
	}, args...)

	if err != nil {
		// The unique constraints are the authoritative guard against a
		// register race that slips past the existence checks above.
		switch {
		case strings.Contains(err.Error(), `users_email_key`):
			return xerrors.New(ErrDuplicateEmail)
		case strings.Contains(err.Error(), `users_username_key`):
			return xerrors.New(ErrDuplicateUsername)
		default:
			return xerrors.New(err)
		}
	}

	c.log.Info("User registered successfully", "user_id", user.ID, "username", user.Username)
	return nil
}

func (c *Core) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE email = $1
		)
	`

	exists, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (bool, error) {
		var exists bool
		if err := rows.Scan(&exists); err != nil {
			return false, xerrors.New(err)
		}
		return exists, nil
	}, email)

	if err != nil {
		return false, xerrors.New(err)
	}

	return exists, nil
}

func (c *Core) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE username = $1
		)
	`

	exists, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (bool, error) {
		var exists bool
		if err := rows.Scan(&exists); err != nil {
			return false, xerrors.New(err)
		}
		return exists, nil
	}, username)

	if err != nil {
		return false, xerrors.New(err)
	}

	return exists, nil
}

func (c *Core) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := `
		SELECT id, email, username, password, bio, image
		FROM users
		WHERE email = $1
	`

	return c.getSingleUser(ctx, query, email)
}

func (c *Core) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	query := `
		SELECT id, email, username, password, bio, image
		FROM users
		WHERE username = $1
	`

	return c.getSingleUser(ctx, query, username)
}

func (c *Core) getSingleUser(ctx context.Context, query string, arg any) (*auth.User, error) {
	user, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (*auth.User, error) {
		var user = &auth.User{}

		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Username,
			&user.Password,
			&user.Bio,
			&user.Image,
		); err != nil {
			return nil, xerrors.New(err)
		}
		return user, nil
	}, arg)

	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, xerrors.New(ErrUserNotFound)
		default:
			return nil, xerrors.New(err)
		}
	}

	return user, nil
}

func (c *Core) GetUsersByIdList(ctx context.Context, userIdList []int64) ([]*auth.User, error) {
	if len(userIdList) == 0 {
		return []*auth.User{}, nil
	}

	placeholders := make([]string, len(userIdList))
	args := make([]any, len(userIdList))
	for i, id := range userIdList {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, email, username, password, bio, image
		FROM users
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

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
	}, args...)

	if err != nil {
		return nil, xerrors.New(err)
	}

	return queryResultList, nil
}

// UpdateUserProfile applies a partial update to the requester's account. Only
// non-empty fields of changes overwrite the stored values; username and email
// changes are checked for collisions against other users (keeping the current
// value is a no-op), and a new password is re-hashed.
func (c *Core) UpdateUserProfile(ctx context.Context, requesterEmail string, changes UserChanges) (*auth.User, error) {
	user, err := c.GetUserByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, xerrors.New(err)
	}

	if changes.Username != "" && changes.Username != user.Username {
		usernameExists, err := c.ExistsByUsername(ctx, changes.Username)
		if err != nil {
			return nil, xerrors.New(err)
		}
		if usernameExists {
			return nil, xerrors.New(ErrDuplicateUsername)
		}
		user.Username = changes.Username
	}

	if changes.Email != "" && changes.Email != user.Email {
		emailExists, err := c.ExistsByEmail(ctx, changes.Email)
		if err != nil {
			return nil, xerrors.New(err)
		}
		if emailExists {
			return nil, xerrors.New(ErrDuplicateEmail)
		}
		user.Email = changes.Email
	}

	if changes.Bio != "" {
		user.Bio = &changes.Bio
	}

	if changes.Image != "" {
		user.Image = &changes.Image
	}

	if changes.Password != "" {
		if err := user.SetPassword(changes.Password); err != nil {
			return nil, xerrors.New(err)
		}
	}

	return c.updateUser(ctx, user)
}

func (c *Core) updateUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	query := `
		UPDATE users
		SET username = $1, email = $2, password = $3, bio = $4, image = $5
		WHERE id = $6
		RETURNING id, email, username, password, bio, image
	`

	args := []any{user.Username, user.Email, user.Password, user.Bio, user.Image, user.ID}
	returningUser, err := databaseutils.ExecuteSingleQuery(c.sqlTemplate, ctx, query, func(rows *sql.Rows) (*auth.User, error) {
		var user = &auth.User{}

		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Username,
			&user.Password,
			&user.Bio,
			&user.Image); err != nil {
			return nil, xerrors.New(err)
		}
		return user, nil
	}, args...)

	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, xerrors.New(ErrUserNotFound)
		case strings.Contains(err.Error(), `users_email_key`):
			return nil, xerrors.New(ErrDuplicateEmail)
		case strings.Contains(err.Error(), `users_username_key`):
			return nil, xerrors.New(ErrDuplicateUsername)
		default:
			return nil, xerrors.New(err)
		}
	}

	c.log.Info("User updated successfully", "user_id", returningUser.ID, "email", returningUser.Email)
	return returningUser, nil
}
