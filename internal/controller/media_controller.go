package controller

import (
	"errors"

	"ai-livehost-be/internal/dto"
	"ai-livehost-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IMediaController interface {
	RegisterRoutes(r fiber.Router)
	NextVideo(ctx *fiber.Ctx) error
	MarkStreamed(ctx *fiber.Ctx) error
	Video(ctx *fiber.Ctx) error
	BaseVideo(ctx *fiber.Ctx) error
}

type mediaController struct {
	mediaService service.IMediaService
}

func NewMediaController(mediaService service.IMediaService) IMediaController {
	return &mediaController{
		mediaService: mediaService,
	}
}

func (c *mediaController) RegisterRoutes(r fiber.Router) {
	r.Get("/next-video", c.NextVideo)
	r.Post("/stream/:itemId", c.MarkStreamed)
	r.Get("/video/:ref", c.Video)
	r.Get("/base-video", c.BaseVideo)
}

func (c *mediaController) NextVideo(ctx *fiber.Ctx) error {
	item, err := c.mediaService.NextVideo()
	if err != nil {
		if errors.Is(err, service.ErrNoVideoReady) {
			return fiber.NewError(fiber.StatusNotFound, "no video is ready")
		}
		return err
	}

	return ctx.JSON(dto.NextVideoResponse{
		ItemId:       item.Id,
		VideoRef:     item.VideoRef,
		ResponseText: item.ResponseText,
	})
}

func (c *mediaController) MarkStreamed(ctx *fiber.Ctx) error {
	itemId, err := uuid.Parse(ctx.Params("itemId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}

	if err := c.mediaService.MarkStreamed(itemId); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown item")
	}

	return ctx.JSON(fiber.Map{"itemId": itemId, "status": "streamed"})
}

func (c *mediaController) Video(ctx *fiber.Ctx) error {
	path, err := c.mediaService.VideoPath(ctx.Params("ref"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "video not found")
	}
	return ctx.SendFile(path)
}

func (c *mediaController) BaseVideo(ctx *fiber.Ctx) error {
	return ctx.SendFile(c.mediaService.BaseVideoPath())
}
