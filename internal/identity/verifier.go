package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	pstrings "quoin/pkg/platform/strings"
)

// Claims is the access token payload. Tenant membership appears under
// tenant_id; older token issuers emit tenantId. Both decode, snake_case
// wins when both are present.
type Claims struct {
	UserID        string   `json:"user_id"`
	Email         string   `json:"email,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
	TenantID      string   `json:"tenant_id,omitempty"`
	TenantIDCamel string   `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// tenantClaim resolves the tenant field across both claim spellings.
func (c *Claims) tenantClaim() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	return c.TenantIDCamel
}

// Verifier mints and verifies HS256 access tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewVerifier(signingKey, issuer, audience string) *Verifier {
	return &Verifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken mints a signed token for the actor. Used by the
// dev token endpoint and by tests exercising the full pipeline.
func (v *Verifier) GenerateAccessToken(actor *Actor, expiresIn time.Duration) (string, error) {
	claims := Claims{
		UserID:      actor.ID.String(),
		Email:       actor.Email,
		Roles:       actor.Roles,
		Permissions: actor.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
			Audience:  []string{v.audience},
			ID:        uuid.NewString(),
		},
	}
	if !actor.TenantID.IsNil() {
		claims.TenantID = actor.TenantID.String()
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString(v.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// VerifyToken parses and verifies a token string, returning the actor it
// represents. Failures carry the taxonomy code the boundary will write:
// expired tokens are distinguished from every other defect.
func (v *Verifier) VerifyToken(tokenString string) (*Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierrors.Wrap(err, apierrors.CodeAuthTokenExpired, "token has expired")
		}
		return nil, apierrors.Wrap(err, apierrors.CodeAuthTokenInvalid, "invalid token")
	}

	if !parsed.Valid {
		return nil, apierrors.New(apierrors.CodeAuthTokenInvalid, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, apierrors.New(apierrors.CodeAuthTokenInvalid, "invalid token claims")
	}

	return actorFromClaims(claims)
}

func actorFromClaims(claims *Claims) (*Actor, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.CodeAuthTokenInvalid, "token subject is not a valid user id")
	}

	actor := &Actor{
		ID:          userID,
		Email:       claims.Email,
		Roles:       pstrings.DedupeAndTrim(claims.Roles),
		Permissions: pstrings.DedupeAndTrim(claims.Permissions),
	}

	if raw := claims.tenantClaim(); raw != "" {
		tenantID, err := id.ParseTenantID(raw)
		if err != nil {
			return nil, apierrors.Wrap(err, apierrors.CodeAuthTokenInvalid, "token tenant claim is not a valid tenant id")
		}
		actor.TenantID = tenantID
	}
	return actor, nil
}
