package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-board/internal/api/dto"
	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/service"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// AdminHandler exposes administration endpoints.
type AdminHandler struct {
	admin *service.AdminService
	apps  *service.ApplicationService
	cvs   *service.CVService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(admin *service.AdminService, apps *service.ApplicationService, cvs *service.CVService) *AdminHandler {
	return &AdminHandler{admin: admin, apps: apps, cvs: cvs}
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	filter := service.UserListFilter{
		Role:   c.Query("role"),
		Search: c.Query("search"),
		Limit:  parseInt(c.Query("limit"), defaultPageSize),
		Offset: parseOffset(c.Query("offset")),
	}
	if raw := c.Query("active"); raw != "" {
		active := c.QueryBool("active")
		filter.Active = &active
	}

	users, total, err := h.admin.ListUsers(c.UserContext(), auth.IdentityFromContext(c), filter)
	if err != nil {
		return err
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{
		"data": resp,
		"meta": fiber.Map{"total": total, "limit": filter.Limit, "offset": filter.Offset},
	})
}

// GetUser handles GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.admin.GetUser(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateUser handles PUT /admin/users/:id.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.admin.UpdateUser(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"), service.UserUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ToggleUserStatus handles POST /admin/users/:id/toggle-status.
func (h *AdminHandler) ToggleUserStatus(c *fiber.Ctx) error {
	user, err := h.admin.ToggleUserStatus(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// DeleteUser handles DELETE /admin/users/:id.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.admin.DeleteUser(c.UserContext(), auth.IdentityFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListJobs handles GET /admin/jobs.
func (h *AdminHandler) ListJobs(c *fiber.Ctx) error {
	jobs, err := h.admin.ListJobs(c.UserContext(), auth.IdentityFromContext(c))
	if err != nil {
		return err
	}
	now := time.Now()
	resp := make([]dto.JobSummaryResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, dto.JobSummaryResponse{
			JobResponse:      dto.NewJobResponse(&jobs[i].Job, now),
			ApplicationCount: jobs[i].ApplicationCount,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ListApplications handles GET /admin/applications.
func (h *AdminHandler) ListApplications(c *fiber.Ctx) error {
	apps, err := h.admin.ListApplications(c.UserContext(), auth.IdentityFromContext(c),
		c.Query("status"), parseInt(c.Query("limit"), defaultPageSize), parseOffset(c.Query("offset")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": applicationList(apps, true)})
}

// DeleteApplication handles DELETE /admin/applications/:id.
func (h *AdminHandler) DeleteApplication(c *fiber.Ctx) error {
	if err := h.apps.Delete(c.UserContext(), auth.IdentityFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.admin.Stats(c.UserContext(), auth.IdentityFromContext(c))
	if err != nil {
		return err
	}
	byRole := fiber.Map{}
	for _, role := range domain.Roles {
		byRole[string(role)] = stats.UsersByRole[role]
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"users": fiber.Map{
			"total":    stats.TotalUsers,
			"active":   stats.ActiveUsers,
			"inactive": stats.InactiveUsers,
			"by_role":  byRole,
		},
		"jobs": fiber.Map{
			"total":   stats.TotalJobs,
			"active":  stats.ActiveJobs,
			"expired": stats.ExpiredJobs,
		},
		"applications": fiber.Map{
			"total":     stats.TotalApplications,
			"by_status": statusCounts(stats.ApplicationsByStatus),
		},
	}})
}

// ReconcileCVs handles POST /admin/cvs/reconcile.
func (h *AdminHandler) ReconcileCVs(c *fiber.Ctx) error {
	result, err := h.cvs.Reconcile(c.UserContext(), auth.IdentityFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
