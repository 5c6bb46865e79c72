package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the access token issued by the identity service. The role claim
// is trusted as the caller's verified role.
type Claims struct {
	Role      string `json:"role"`
	ActingFor string `json:"acting_for,omitempty"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: subject", ErrInvalidToken)
	}

	principal := model.Principal{UserID: userID}
	switch model.Role(strings.ToUpper(claims.Role)) {
	case model.RoleLandlord:
		principal.Role = model.RoleLandlord
	case model.RoleTenant:
		principal.Role = model.RoleTenant
	case model.RoleAgent:
		landlordID, err := uuid.Parse(claims.ActingFor)
		if err != nil {
			return model.Principal{}, fmt.Errorf("%w: acting_for", ErrInvalidToken)
		}
		principal.Role = model.RoleAgent
		principal.ActingFor = &landlordID
	default:
		return model.Principal{}, fmt.Errorf("%w: role", ErrInvalidToken)
	}
	return principal, nil
}

// Issue signs a token for the principal. The identity service owns issuance
// in production; this is used by tests and local tooling.
func (p *Parser) Issue(principal model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if principal.ActingFor != nil {
		claims.ActingFor = principal.ActingFor.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
