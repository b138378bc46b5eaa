package relay

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

var errNoToken = errors.New("no authentication token provided")

// Identity is the authenticated caller
type Identity struct {
	UserID   string
	Username string
}

// Authenticator validates bearer tokens. Without a secret it runs in development
// mode, where the token itself is "<user_id>" or "<user_id>:<username>".
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// DevMode reports whether tokens are taken at face value
func (a *Authenticator) DevMode() bool {
	return len(a.secret) == 0
}

// Authenticate extracts the token from ?token= or the Authorization header
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	tokenString := r.URL.Query().Get("token")

	if auth := r.Header.Get("Authorization"); auth != "" {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}

	if tokenString == "" {
		return Identity{}, errNoToken
	}

	if a.DevMode() {
		return devIdentity(tokenString)
	}
	return a.parseJWT(tokenString)
}

// IssueToken signs an HS256 token for id. It fails in development mode.
func (a *Authenticator) IssueToken(id Identity, ttl time.Duration) (string, error) {
	if a.DevMode() {
		return "", errors.New("no signing secret configured")
	}
	claims := jwt.MapClaims{
		"user_id":  id.UserID,
		"sub":      id.UserID,
		"username": id.Username,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) parseJWT(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token claims")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return Identity{}, errors.New("invalid user_id in token")
	}
	username, _ := claims["username"].(string)
	if username == "" {
		username = userID
	}

	return Identity{UserID: userID, Username: username}, nil
}

func devIdentity(token string) (Identity, error) {
	userID, username, _ := strings.Cut(token, ":")
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Identity{}, errors.New("invalid development token")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = userID
	}
	return Identity{UserID: userID, Username: username}, nil
}

// requireAuth rejects unauthenticated REST calls and stores the identity on the context
func (a *Authenticator) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			return
		}
		c.Set(ctxUserID, id.UserID)
		c.Set(ctxUsername, id.Username)
		c.Next()
	}
}
