package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

// Auth manages accounts and sessions.
type Auth struct {
	db         *gorm.DB
	tokens     *tokenSigner
	refreshTTL time.Duration
	now        func() time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidCredentials)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var sess *Session
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&authUser{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		u := authUser{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: string(hash),
			CreatedAt:    a.now().UTC(),
		}
		if err := tx.Create(&u).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}

		sess, err = a.issue(tx, User{ID: u.ID, Email: u.Email})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}

	return sess, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	var u authUser
	if err := a.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := a.issue(a.db.WithContext(ctx), User{ID: u.ID, Email: u.Email})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return sess, nil
}

// SignOut revokes the session's refresh token. A nil session or one without a
// refresh token has nothing to revoke.
func (a *Auth) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil || sess.RefreshToken == "" {
		return nil
	}

	err := a.db.WithContext(ctx).
		Model(&refreshToken{}).
		Where("token_hash = ?", hashToken(sess.RefreshToken)).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SetSession rebuilds a session from a token pair. A valid access token is
// accepted as is; an expired one is exchanged through Refresh.
func (a *Auth) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	user, exp, err := a.tokens.parse(accessToken)
	switch {
	case err == nil:
		return &Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    exp,
			User:         user,
		}, nil
	case errors.Is(err, errTokenExpired):
		return a.Refresh(ctx, refreshToken)
	default:
		return nil, err
	}
}

// Refresh exchanges a refresh token for a new session. The presented token is
// revoked; reusing it fails.
func (a *Auth) Refresh(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var sess *Session
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt refreshToken
		if err := tx.Where("token_hash = ?", hashToken(token)).Take(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnauthenticated
			}
			return err
		}
		if rt.Revoked || !a.now().Before(rt.ExpiresAt) {
			return ErrUnauthenticated
		}

		res := tx.Model(&refreshToken{}).
			Where("id = ? AND revoked = ?", rt.ID, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUnauthenticated
		}

		var u authUser
		if err := tx.Where("id = ?", rt.UserID).Take(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnauthenticated
			}
			return err
		}

		var err error
		sess, err = a.issue(tx, User{ID: u.ID, Email: u.Email})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	return sess, nil
}

// Verify checks the session's access token and returns its user.
func (a *Auth) Verify(_ context.Context, sess *Session) (*User, error) {
	if sess == nil {
		return nil, ErrUnauthenticated
	}

	user, _, err := a.tokens.parse(sess.AccessToken)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			return nil, fmt.Errorf("%w: access token expired", ErrUnauthenticated)
		}
		return nil, err
	}
	return user, nil
}

func (a *Auth) issue(tx *gorm.DB, u User) (*Session, error) {
	access, exp, err := a.tokens.sign(u)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := a.now().UTC()
	rt := refreshToken{
		TokenHash: hashToken(refresh),
		UserID:    u.ID,
		ExpiresAt: now.Add(a.refreshTTL),
		CreatedAt: now,
	}
	if err := tx.Create(&rt).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         &u,
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
