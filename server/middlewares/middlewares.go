package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/plutoid/plutoid/utils/log"
)

const (
	// ViewerKey is the gin context key holding the verified viewer uid.
	ViewerKey = "viewer"

	ErrorTokenAuthFail = "token_auth_fail"
	ErrorViewerMissing = "viewer_missing"
)

// IdentityClient resolves a Cognito access token into the user it belongs to.
type IdentityClient interface {
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

// Claims of tokens signed with JWT_SECRET. The uid is the subject, older
// tokens carry it as userId.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer token into a viewer uid.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// CognitoVerifier asks Cognito who owns an access token.
type CognitoVerifier struct {
	Client IdentityClient
}

// NewCognitoVerifier creates a client with the default aws config chain.
func NewCognitoVerifier(ctx context.Context) (*CognitoVerifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &CognitoVerifier{Client: cognitoidentityprovider.NewFromConfig(cfg)}, nil
}

func (v *CognitoVerifier) Verify(ctx context.Context, token string) (string, error) {
	user, err := v.Client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{AccessToken: &token})
	if err != nil {
		return "", err
	}
	if user.Username == nil || *user.Username == "" {
		return "", fmt.Errorf("token has no user")
	}
	return *user.Username, nil
}

// HMACVerifier checks tokens signed with a shared secret.
type HMACVerifier struct {
	Secret []byte
}

func (v *HMACVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", fmt.Errorf("token has no subject")
}

// Setup picks the verifier from AUTH_PROVIDER: "cognito" or, by default, a
// JWT_SECRET signed token.
func Setup(ctx context.Context) (Verifier, error) {
	if os.Getenv("AUTH_PROVIDER") == "cognito" {
		return NewCognitoVerifier(ctx)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	return &HMACVerifier{Secret: []byte(secret)}, nil
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// Viewer resolves the optional bearer token into a viewer uid. Requests
// without a token pass through anonymously, requests with a bad token are
// rejected.
func Viewer(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		hasHeader := c.GetHeader("Authorization") != ""
		token := bearerToken(c)
		if token == "" {
			if hasHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code": ErrorTokenAuthFail,
					"msg":  "format should be: Bearer <token>",
				})
				return
			}
			c.Next()
			return
		}

		uid, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			Log.WithError(err).Debug("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": ErrorTokenAuthFail,
				"msg":  err.Error(),
			})
			return
		}
		c.Set(ViewerKey, uid)
		c.Next()
	}
}

// DevViewer trusts the "sub" header. Only installed when auth is bypassed
// for local development.
func DevViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sub := c.GetHeader("sub"); sub != "" {
			c.Set(ViewerKey, sub)
		}
		c.Next()
	}
}

// RequireViewer rejects anonymous requests.
func RequireViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ViewerID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": ErrorViewerMissing,
				"msg":  "sign in required",
			})
			return
		}
		c.Next()
	}
}

// ViewerID returns the viewer uid set by Viewer or DevViewer, empty for
// anonymous requests.
func ViewerID(c *gin.Context) string {
	return c.GetString(ViewerKey)
}
