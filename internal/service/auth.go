package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type TokenIssuer interface {
	GenerateToken(userID, name string, role models.Role) (string, error)
}

type Auth struct {
	log      *slog.Logger
	users    UserProvider
	tokens   TokenIssuer
	recorder Recorder
}

func NewAuth(log *slog.Logger, users UserProvider, tokens TokenIssuer, recorder Recorder) *Auth {
	return &Auth{log: log, users: users, tokens: tokens, recorder: recorder}
}

// Login checks the password and issues a session token. Unknown email and wrong password
// are indistinguishable to the caller.
func (a *Auth) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	const op = "service.auth.Login"
	log := a.log.With(slog.String("op", op))

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("user not found")
			a.failed()
			return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn("invalid password", slog.String("user_id", user.ID))
		a.failed()
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}

	token, err := a.tokens.GenerateToken(user.ID, user.Name, user.Role)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("user_id", user.ID))
	return &models.LoginResponse{Token: token, User: models.ToUserResponse(*user)}, nil
}

func (a *Auth) failed() {
	if a.recorder != nil {
		a.recorder.Observe("login", models.ErrUnauthorized)
	}
}
