package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkowalczyk/svchub/internal/auth"
	"github.com/mkowalczyk/svchub/internal/config"
)

type CredentialChecker interface {
	Authenticate(ctx context.Context, email, password string) (auth.IdentityClaim, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email string) (string, error)
}

type AuthHandler struct {
	authenticator CredentialChecker
	jwt           TokenIssuer
}

func NewAuthHandler(authenticator CredentialChecker, jwt TokenIssuer) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		jwt:           jwt,
	}
}

type LoginCredentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	User LoginCredentials `json:"user" binding:"required"`
}

// Login exchanges email+password for a signed access token. Unknown email
// and wrong password produce the same unauthorized response.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup + bcrypt verify
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	claim, err := h.authenticator.Authenticate(cctx, req.User.Email, req.User.Password)

	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		RespondInternal(ctx, "Could not log in")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(claim.ID, claim.Email)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
	})
}
