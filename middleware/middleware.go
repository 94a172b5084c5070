package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"agromart/apperr"
	"agromart/globals"
	"agromart/models"
	"agromart/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Middleware func(httprouter.Handle) httprouter.Handle

// Chain wraps h so that mws[0] runs first.
func Chain(h httprouter.Handle, mws ...Middleware) httprouter.Handle {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Tokens issues and validates HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl}
}

// Issue signs a token for user that expires after the configured TTL.
func (t *Tokens) Issue(user models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(t.ttl)
	claims := Claims{
		UserID: user.ID.Hex(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates raw and returns the caller identity it carries.
func (t *Tokens) Parse(raw string) (models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, apperr.Unauthorized("token expired")
		}
		return models.Identity{}, apperr.Unauthorized("invalid token")
	}

	uid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return models.Identity{}, apperr.Unauthorized("invalid token subject")
	}
	role := models.Role(claims.Role)
	if role != models.RoleAdmin {
		role = models.RoleCustomer
	}
	return models.Identity{UserID: uid, Role: role}, nil
}

// Authenticate requires a bearer token and stores the Identity in the request context.
func (t *Tokens) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		if header == "" {
			utils.RespondWithError(w, apperr.Unauthorized("missing token"))
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			utils.RespondWithError(w, apperr.Unauthorized("invalid token format"))
			return
		}

		id, err := t.Parse(raw)
		if err != nil {
			utils.RespondWithError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), globals.IdentityKey, id)
		next(w, r.WithContext(ctx), ps)
	}
}

// RequireRoles rejects callers whose role is not listed. It must run after Authenticate.
func RequireRoles(roles ...models.Role) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			id, ok := utils.IdentityFromRequest(r)
			if !ok {
				utils.RespondWithError(w, apperr.Unauthorized("missing token"))
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next(w, r, ps)
					return
				}
			}
			utils.RespondWithError(w, apperr.Forbidden("insufficient role"))
		}
	}
}
