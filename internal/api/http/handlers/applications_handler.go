package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-board/internal/api/dto"
	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/service"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// ApplicationsHandler exposes the application lifecycle.
type ApplicationsHandler struct {
	apps *service.ApplicationService
	cvs  *service.CVService
}

// NewApplicationsHandler constructs handler.
func NewApplicationsHandler(apps *service.ApplicationService, cvs *service.CVService) *ApplicationsHandler {
	return &ApplicationsHandler{apps: apps, cvs: cvs}
}

// Apply handles POST /jobs/:id/applications (multipart: cover_letter, cv).
func (h *ApplicationsHandler) Apply(c *fiber.Ctx) error {
	var upload *service.CVUpload
	if fh, err := c.FormFile("cv"); err == nil && fh != nil {
		f, err := fh.Open()
		if err != nil {
			return apperrors.NewValidationError("could not read uploaded cv", nil)
		}
		defer f.Close()
		upload = &service.CVUpload{Filename: fh.Filename, Size: fh.Size, Content: f}
	}

	app, err := h.apps.Submit(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"), c.FormValue("cover_letter"), upload)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewApplicationResponse(app, false)})
}

// ListMine handles GET /applications/mine.
func (h *ApplicationsHandler) ListMine(c *fiber.Ctx) error {
	apps, err := h.apps.ListMine(c.UserContext(), auth.IdentityFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": applicationList(apps, false)})
}

// GetApplication handles GET /applications/:id. Applicants never see reviewer notes.
func (h *ApplicationsHandler) GetApplication(c *fiber.Ctx) error {
	actor := auth.IdentityFromContext(c)
	detail, err := h.apps.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationDetailResponse(detail, !actor.IsApplicant())})
}

// DownloadCV handles GET /applications/:id/cv.
func (h *ApplicationsHandler) DownloadCV(c *fiber.Ctx) error {
	dl, err := h.cvs.Download(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	c.Attachment(dl.Name)
	c.Set(fiber.HeaderContentType, dl.ContentType)
	return c.SendStream(dl.File, int(dl.Size))
}

// Withdraw handles POST /applications/:id/withdraw.
func (h *ApplicationsHandler) Withdraw(c *fiber.Ctx) error {
	app, err := h.apps.Withdraw(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app, false)})
}

// UpdateStatus handles POST /applications/:id/status.
func (h *ApplicationsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	app, err := h.apps.Transition(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app, true)})
}

// BulkUpdateStatus handles POST /applications/bulk-status.
func (h *ApplicationsHandler) BulkUpdateStatus(c *fiber.Ctx) error {
	var req dto.BulkStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.apps.BulkTransition(c.UserContext(), auth.IdentityFromContext(c), req.ApplicationIDs, req.Status)
	if err != nil {
		return err
	}
	resp := dto.BulkStatusResponse{
		Updated: append([]string{}, result.Updated...),
		Failed:  make(map[string]dto.ErrorResponse, len(result.Failed)),
	}
	for id, failure := range result.Failed {
		resp.Failed[id] = dto.ErrorResponse{Code: failure.Code, Message: failure.Message, Details: failure.Details}
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SetScore handles POST /applications/:id/score.
func (h *ApplicationsHandler) SetScore(c *fiber.Ctx) error {
	var req dto.ScoreRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("score must be an integer", nil)
	}
	if req.Score == nil {
		return apperrors.NewValidationError("score required", map[string]any{"min": domain.MinScore, "max": domain.MaxScore})
	}
	app, err := h.apps.SetScore(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"), *req.Score)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app, true)})
}

// SaveNotes handles POST /applications/:id/notes.
func (h *ApplicationsHandler) SaveNotes(c *fiber.Ctx) error {
	var req dto.NotesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	app, err := h.apps.SaveNotes(c.UserContext(), auth.IdentityFromContext(c), c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app, true)})
}

func applicationList(apps []domain.ApplicationDetail, withNotes bool) []dto.ApplicationResponse {
	resp := make([]dto.ApplicationResponse, 0, len(apps))
	for i := range apps {
		resp = append(resp, dto.NewApplicationDetailResponse(&apps[i], withNotes))
	}
	return resp
}
