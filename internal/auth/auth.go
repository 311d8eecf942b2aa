package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/conduit/internal/web"
	"golang.org/x/crypto/bcrypt"
)

const (
	UserCtxKey = "user_data"
)

var (
	NotAuthenticatedUser = xerrors.Message("Not authenticated user")
)

type Auth struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewAuth(secret string, tokenTTL time.Duration) *Auth {
	return &Auth{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

func (user *User) SetPassword(plainTextPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), 12)

	if err != nil {
		return xerrors.New(err)
	}

	user.Password = hashedPassword
	return nil
}

func (user *User) IsPasswordMatch(plainTextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(user.Password, []byte(plainTextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, xerrors.New(err)
	}

	return true, nil
}

// GenerateToken signs an HS256 token whose subject is the user's email, the
// identity the rest of the system resolves principals by.
func (auth *Auth) GenerateToken(user *User) (string, error) {
	expireAt := time.Now().Add(auth.tokenTTL)
	claim := UserClaim{
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ExpiresAt: jwt.NewNumericDate(expireAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	signedString, err := token.SignedString(auth.secret)
	if err != nil {
		return "", xerrors.New(err)
	}
	return signedString, nil
}

func (auth *Auth) Authenticate(tokenString string) (*UserClaim, error) {
	parsedToken, err := jwt.ParseWithClaims(tokenString, &UserClaim{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, xerrors.New("unexpected signing method")
		}
		return auth.secret, nil
	})

	if err != nil {
		return nil, xerrors.New(err)
	}

	if !parsedToken.Valid {
		return nil, xerrors.New("invalid token")
	}

	if claim, ok := parsedToken.Claims.(*UserClaim); ok {
		return claim, nil
	} else {
		return nil, xerrors.New("could not parse claims")
	}
}

func (auth *Auth) GetAuthenticatedUser(r *http.Request) (*User, error) {
	user, ok := web.GetValueFromContext[*User](r, UserCtxKey)
	if !ok {
		return nil, NotAuthenticatedUser
	}

	return user, nil
}

func (auth *Auth) SetAuthenticatedUser(r *http.Request, user *User) *http.Request {
	return web.AddValueToContext(r, UserCtxKey, user)
}

func (auth *Auth) IsUserAuthenticated(r *http.Request) bool {
	_, err := auth.GetAuthenticatedUser(r)
	return err == nil
}
