package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JeanGrijp/niji-api/internal/adapters/http/response"
	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

type KeyIssuer interface {
	Issue(ctx context.Context, username string) (domain.Identity, error)
}

type KeyHandler struct {
	issuer KeyIssuer
}

func NewKeyHandler(issuer KeyIssuer) *KeyHandler {
	return &KeyHandler{issuer: issuer}
}

type keyResponse struct {
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
	Role     string `json:"role"`
}

// Create issues a key. Only the username query parameter is accepted.
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	for name := range query {
		if name != "username" {
			response.Error(w, r, fmt.Errorf("%w: only 'username' parameter is allowed", domain.ErrInvalidInput))
			return
		}
	}

	identity, err := h.issuer.Issue(r.Context(), query.Get("username"))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, keyResponse{
		Username: identity.Username,
		APIKey:   identity.Key,
		Role:     string(identity.Role),
	})
}
