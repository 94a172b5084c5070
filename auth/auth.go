// Package auth registers users and exchanges credentials for access tokens.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"agromart/apperr"
	"agromart/logging"
	"agromart/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type Users interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type TokenIssuer interface {
	Issue(user models.User) (string, time.Time, error)
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type Service struct {
	users   Users
	tokens  TokenIssuer
	isAdmin func(email string) bool
	cost    int
}

// NewService builds the auth service. isAdmin decides which emails get the
// admin role at registration.
func NewService(users Users, tokens TokenIssuer, isAdmin func(string) bool) *Service {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Service{users: users, tokens: tokens, isAdmin: isAdmin, cost: bcrypt.DefaultCost}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation("Invalid email address")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return nil, apperr.Validation("Password must be at least %d characters", minPasswordLen)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(in.Password) > 72 {
		return nil, apperr.Validation("Password is too long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	role := models.RoleCustomer
	if s.isAdmin(email) {
		role = models.RoleAdmin
	}
	u := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("user registered",
		zap.String("user_id", u.ID.Hex()), zap.String("role", string(role)))
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, apperr.Internal("failed to check password", err)
	}

	now := time.Now().UTC()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		logging.FromContext(ctx).Warn("last login not recorded", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	u.LastLogin = now
	return s.session(u)
}

func (s *Service) Me(ctx context.Context, caller models.Identity) (*models.User, error) {
	return s.users.GetByID(ctx, caller.UserID)
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(*u)
	if err != nil {
		return nil, apperr.Internal("failed to generate token", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}
