package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/policynav/accounts/internal/core/ports"
)

// AccountHandler serves the admin account listing.
type AccountHandler struct {
	credentials ports.CredentialService
}

func NewAccountHandler(credentials ports.CredentialService) *AccountHandler {
	return &AccountHandler{credentials: credentials}
}

// List handles GET /v1/admin/accounts.
//
// @Summary      List all accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  accountListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/admin/accounts [get]
func (h *AccountHandler) List(c echo.Context) error {
	accounts, err := h.credentials.ListAccounts(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]adminAccountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toAdminAccount(acc))
	}
	return c.JSON(http.StatusOK, accountListResponse{Accounts: out, Count: len(out)})
}
