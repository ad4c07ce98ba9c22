package handler

import (
	"net/http"

	"marketplace/internal/database"
	"marketplace/internal/middleware"
	"marketplace/internal/service"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles")
	roles.Use(middleware.RequirePermission(database.PermApprovalsRead))
	{
		roles.GET("", h.ListRoles)
	}

	accounts := router.Group("/api/accounts")
	accounts.Use(middleware.RequirePermission(database.PermApprovalsRead))
	{
		accounts.GET("/:id/access", h.GetAccountAccess)
	}
}

// ListRoles returns all roles with their permissions
// @Summary      List roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// GetAccountAccess returns the roles granted to an account and the permissions they carry
// @Summary      Get account access
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  response.Response{data=service.AccountAccessResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/accounts/{id}/access [get]
func (h *RoleHandler) GetAccountAccess(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	access, err := h.roleService.AccountAccess(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, access))
}
