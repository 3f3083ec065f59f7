package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/subhive/subhive/backend/internal/httpx"
	"github.com/subhive/subhive/backend/internal/utils"
)

type tokenReq struct {
	UserID string `json:"userId" binding:"required"`
}

// RegisterPublic mounts the token mint endpoint. It stands in for the
// external wallet-auth provider in self-contained deployments; real ones
// mint tokens out-of-band with the same secret.
func RegisterPublic(rg *gin.RouterGroup, secret string, ttlMin int) {
	rg.POST("/auth/token", func(c *gin.Context) {
		var req tokenReq
		if err := c.ShouldBindJSON(&req); err != nil {
			if validationErrors, ok := err.(validator.ValidationErrors); ok {
				httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
				return
			}
			httpx.Err(c, http.StatusBadRequest, err.Error())
			return
		}

		tok, err := NewToken(secret, req.UserID, ttlMin)
		if err != nil {
			httpx.Err(c, http.StatusInternalServerError, "Token Genration Failed")
			return
		}
		httpx.OK(c, gin.H{"token": tok, "user_id": req.UserID})
	})
}
