package voiceapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Shelby3344/cardflow-sub001/internal/app"
	"github.com/Shelby3344/cardflow-sub001/internal/httpserver/httputil"
	"github.com/Shelby3344/cardflow-sub001/internal/models"
	"github.com/Shelby3344/cardflow-sub001/internal/services/speech"
)

// Register wires up the voice API routes.
func Register(fiberApp *fiber.App, container *app.Container) {
	handler := &voiceHandler{container: container}
	group := fiberApp.Group("/api")
	group.Get("/health", handler.health)
	group.Post("/tts", handler.synthesizeText)
	group.Post("/tts/card", handler.synthesizeCard)
}

type voiceHandler struct {
	container *app.Container
}

type ttsRequest struct {
	Text       string   `json:"text"`
	Voice      string   `json:"voice"`
	Speed      float64  `json:"speed"`
	Provider   string   `json:"provider"`
	Stability  *float64 `json:"stability"`
	Similarity *float64 `json:"similarity"`
}

type cardTTSRequest struct {
	Front         string  `json:"front"`
	Back          string  `json:"back"`
	PauseDuration float64 `json:"pauseDuration"`
	Voice         string  `json:"voice"`
	Speed         float64 `json:"speed"`
}

// health is intentionally independent of cache, provider, and storage
// reachability.
func (h *voiceHandler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *voiceHandler) synthesizeText(c *fiber.Ctx) error {
	var payload ttsRequest
	if err := c.BodyParser(&payload); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.container.Speech.SynthesizeText(c.UserContext(), speech.TextRequest{
		Text:       payload.Text,
		Voice:      payload.Voice,
		Speed:      payload.Speed,
		Provider:   payload.Provider,
		Stability:  payload.Stability,
		Similarity: payload.Similarity,
	})
	if err != nil {
		return writeSpeechError(c, err)
	}
	return c.JSON(fiber.Map{
		"audio_url": result.AudioURL,
		"cached":    result.Cached,
	})
}

func (h *voiceHandler) synthesizeCard(c *fiber.Ctx) error {
	var payload cardTTSRequest
	if err := c.BodyParser(&payload); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.container.Speech.SynthesizeCard(c.UserContext(), speech.CardRequest{
		Front:         payload.Front,
		Back:          payload.Back,
		PauseDuration: payload.PauseDuration,
		Voice:         payload.Voice,
		Speed:         payload.Speed,
	})
	if err != nil {
		return writeSpeechError(c, err)
	}
	return c.JSON(fiber.Map{
		"front_audio":    result.FrontAudio,
		"back_audio":     result.BackAudio,
		"pause_duration": result.PauseDuration,
		"cached":         result.Cached,
	})
}

func writeSpeechError(c *fiber.Ctx, err error) error {
	var verr *speech.ValidationError
	switch {
	case errors.As(err, &verr):
		return httputil.WriteError(c, fiber.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrSynthesisFailed):
		return httputil.WriteErrorDetails(c, fiber.StatusInternalServerError, "speech synthesis failed", err.Error())
	case errors.Is(err, models.ErrStorageFailed):
		return httputil.WriteErrorDetails(c, fiber.StatusInternalServerError, "audio storage failed", err.Error())
	default:
		return httputil.WriteErrorDetails(c, fiber.StatusInternalServerError, "internal error", err.Error())
	}
}
