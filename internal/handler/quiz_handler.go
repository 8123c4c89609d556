package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/service"
	"github.com/quizdeck/quizdeck-api/internal/utils"
)

// QuizHandler wires quiz and question administration routes.
type QuizHandler struct {
	service   service.QuizService
	assistant service.AssistantService
	logger    zerolog.Logger
}

// NewQuizHandler constructs the handler.
func NewQuizHandler(service service.QuizService, assistant service.AssistantService, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		service:   service,
		assistant: assistant,
		logger:    logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// Register attaches quiz endpoints to the router group.
func (h *QuizHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/questions", h.addQuestion)
	router.Delete("/:id/questions/:questionID", h.deleteQuestion)
	router.Post("/:id/questions/:questionID/image", h.attachImage)
	router.Post("/:id/import", h.importJSON)
	router.Post("/:id/import/excel", h.importExcel)
	router.Post("/assistant/draft", h.draftQuestions)
}

func (h *QuizHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	quizzes, total, err := h.service.List(c.UserContext(), userIDFromContext(c), c.Query("search"), page, pageSize)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "quizzes retrieved", fiber.Map{"quizzes": quizzes, "total": total})
}

func (h *QuizHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	quiz, questions, err := h.service.Get(c.UserContext(), userIDFromContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz retrieved", fiber.Map{"quiz": quiz, "questions": questions})
}

func (h *QuizHandler) create(c *fiber.Ctx) error {
	var payload dto.QuizCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	quiz, err := h.service.Create(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz created", quiz)
}

func (h *QuizHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuizUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	quiz, err := h.service.Update(c.UserContext(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz updated", quiz)
}

func (h *QuizHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), userIDFromContext(c), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quiz deleted", fiber.Map{"id": id})
}

func (h *QuizHandler) addQuestion(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	question, err := h.service.AddQuestion(c.UserContext(), userIDFromContext(c), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question added", question)
}

func (h *QuizHandler) deleteQuestion(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	questionID, err := parseUintParam(c, "questionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteQuestion(c.UserContext(), userIDFromContext(c), id, questionID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "question deleted", fiber.Map{"id": questionID})
}

func (h *QuizHandler) attachImage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	questionID, err := parseUintParam(c, "questionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	question, err := h.service.AttachImage(c.UserContext(), userIDFromContext(c), id, questionID, file)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedImage) {
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, "unsupported image type")
		}
		if errors.Is(err, service.ErrUploadsDisabled) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, "image uploads disabled")
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "image attached", question)
}

func (h *QuizHandler) importJSON(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.ImportJSON(c.UserContext(), userIDFromContext(c), id, c.Body())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound), errors.Is(err, service.ErrNotQuizOwner):
			return h.handleError(c, err)
		default:
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	return utils.SendSuccess(c, "question bank imported", report)
}

func (h *QuizHandler) importExcel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	src, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "could not read file")
	}
	defer src.Close()

	report, err := h.service.ImportExcel(c.UserContext(), userIDFromContext(c), id, src)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound), errors.Is(err, service.ErrNotQuizOwner):
			return h.handleError(c, err)
		default:
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	return utils.SendSuccess(c, "question bank imported", report)
}

func (h *QuizHandler) draftQuestions(c *fiber.Ctx) error {
	var payload dto.AssistantDraftRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	proposals, err := h.assistant.DraftQuestions(c.UserContext(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssistantUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "assistant unavailable")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			return h.internalError(c, err)
		}
	}

	return utils.SendSuccess(c, "draft questions generated", proposals)
}

func (h *QuizHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "quiz not found")
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrNotQuizOwner):
		return utils.SendError(c, fiber.StatusForbidden, "not quiz owner")
	case errors.Is(err, service.ErrInvalidQuestion):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *QuizHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
