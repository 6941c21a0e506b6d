package controller

import (
	"ai-livehost-be/internal/dto"
	"ai-livehost-be/internal/pkg/serverutils"
	"ai-livehost-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IInputController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	OnAirState(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type inputController struct {
	admissionService service.IAdmissionService
	statusService    service.IStatusService
}

func NewInputController(admissionService service.IAdmissionService, statusService service.IStatusService) IInputController {
	return &inputController{
		admissionService: admissionService,
		statusService:    statusService,
	}
}

func (c *inputController) RegisterRoutes(r fiber.Router) {
	r.Post("/input", c.Submit)
	r.Get("/status", c.Status)
	r.Get("/onair", c.OnAirState)
	r.Get("/health", c.Health)
}

func (c *inputController) Submit(ctx *fiber.Ctx) error {
	var req dto.SubmitInputRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	itemId, err := c.admissionService.Submit(ctx.Context(), req.SenderId, req.Text)
	if err != nil {
		return err
	}

	return ctx.JSON(dto.SubmitInputResponse{
		ItemId: itemId,
		Status: "received",
	})
}

func (c *inputController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(c.statusService.Snapshot())
}

func (c *inputController) OnAirState(ctx *fiber.Ctx) error {
	return ctx.JSON(c.statusService.OnAirState())
}

func (c *inputController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(c.statusService.Health())
}
