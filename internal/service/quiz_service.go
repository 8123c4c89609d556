package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

// ErrQuizNotFound indicates the requested quiz does not exist.
var ErrQuizNotFound = errors.New("quiz not found")

// ErrQuestionNotFound indicates the requested question does not exist.
var ErrQuestionNotFound = errors.New("question not found")

// ErrNotQuizOwner indicates the acting admin does not own the quiz.
var ErrNotQuizOwner = errors.New("not quiz owner")

// ErrUnsupportedImage indicates an illustration upload is not a raster image.
var ErrUnsupportedImage = errors.New("unsupported image type")

// ErrUploadsDisabled is returned when no file storage backend is configured.
var ErrUploadsDisabled = errors.New("image uploads disabled")

// ErrInvalidQuestion indicates the question payload breaks a domain rule.
var ErrInvalidQuestion = errors.New("invalid question")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// QuizService exposes quiz and question administration.
type QuizService interface {
	List(ctx context.Context, ownerID uint, search string, page, pageSize int) ([]dto.QuizResponse, int64, error)
	Get(ctx context.Context, ownerID, id uint) (dto.QuizResponse, []dto.QuestionResponse, error)
	Create(ctx context.Context, ownerID uint, payload dto.QuizCreateRequest) (dto.QuizResponse, error)
	Update(ctx context.Context, ownerID, id uint, payload dto.QuizUpdateRequest) (dto.QuizResponse, error)
	Delete(ctx context.Context, ownerID, id uint) error
	AddQuestion(ctx context.Context, ownerID, quizID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	DeleteQuestion(ctx context.Context, ownerID, quizID, questionID uint) error
	AttachImage(ctx context.Context, ownerID, quizID, questionID uint, file *multipart.FileHeader) (dto.QuestionResponse, error)
	ImportJSON(ctx context.Context, ownerID, quizID uint, payload []byte) (dto.QuestionImportReport, error)
	ImportExcel(ctx context.Context, ownerID, quizID uint, reader io.Reader) (dto.QuestionImportReport, error)
}

type quizService struct {
	repo      repository.QuizRepository
	validator *validator.Validate
	uploader  FileUploader
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewQuizService builds a new quiz service.
func NewQuizService(repo repository.QuizRepository, validate *validator.Validate, uploader FileUploader, logger zerolog.Logger) QuizService {
	return &quizService{
		repo:      repo,
		validator: validate,
		uploader:  uploader,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "quiz_service").Logger(),
	}
}

func (s *quizService) List(ctx context.Context, ownerID uint, search string, page, pageSize int) ([]dto.QuizResponse, int64, error) {
	quizzes, total, err := s.repo.List(ctx, repository.QuizFilter{
		Search:   search,
		OwnerID:  &ownerID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	return dto.NewQuizResponseSlice(quizzes), total, nil
}

func (s *quizService) Get(ctx context.Context, ownerID, id uint) (dto.QuizResponse, []dto.QuestionResponse, error) {
	quiz, err := s.ownedQuizWithQuestions(ctx, ownerID, id)
	if err != nil {
		return dto.QuizResponse{}, nil, err
	}

	return dto.NewQuizResponse(quiz), dto.NewQuestionResponseSlice(quiz.Questions, true), nil
}

func (s *quizService) Create(ctx context.Context, ownerID uint, payload dto.QuizCreateRequest) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}

	quiz := models.Quiz{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		OwnerID:     ownerID,
	}

	if err := s.repo.Create(ctx, &quiz); err != nil {
		return dto.QuizResponse{}, err
	}

	s.logger.Info().Uint("quiz_id", quiz.ID).Msg("quiz created")

	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) Update(ctx context.Context, ownerID, id uint, payload dto.QuizUpdateRequest) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}

	quiz, err := s.ownedQuiz(ctx, ownerID, id)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	if payload.Title != nil {
		quiz.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		quiz.Description = strings.TrimSpace(*payload.Description)
	}

	if err := s.repo.Update(ctx, &quiz); err != nil {
		return dto.QuizResponse{}, err
	}

	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) Delete(ctx context.Context, ownerID, id uint) error {
	if _, err := s.ownedQuiz(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuizNotFound
		}
		return err
	}

	s.logger.Info().Uint("quiz_id", id).Msg("quiz deleted")
	return nil
}

func (s *quizService) AddQuestion(ctx context.Context, ownerID, quizID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	quiz, err := s.ownedQuizWithQuestions(ctx, ownerID, quizID)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.buildQuestion(quizID, len(quiz.Questions)+1, payload)
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	if err := s.repo.CreateQuestion(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("quiz_id", quizID).Uint("question_id", question.ID).Msg("question added")

	return dto.NewQuestionResponse(question, true), nil
}

func (s *quizService) DeleteQuestion(ctx context.Context, ownerID, quizID, questionID uint) error {
	if _, err := s.ownedQuiz(ctx, ownerID, quizID); err != nil {
		return err
	}

	question, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionNotFound
		}
		return err
	}

	if question.QuizID != quizID {
		return ErrQuestionNotFound
	}

	return s.repo.DeleteQuestion(ctx, questionID)
}

func (s *quizService) AttachImage(ctx context.Context, ownerID, quizID, questionID uint, file *multipart.FileHeader) (dto.QuestionResponse, error) {
	if s.uploader == nil {
		return dto.QuestionResponse{}, ErrUploadsDisabled
	}

	if _, err := s.ownedQuiz(ctx, ownerID, quizID); err != nil {
		return dto.QuestionResponse{}, err
	}

	question, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	if question.QuizID != quizID {
		return dto.QuestionResponse{}, ErrQuestionNotFound
	}

	src, err := file.Open()
	if err != nil {
		return dto.QuestionResponse{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(src, 8<<20)); err != nil {
		return dto.QuestionResponse{}, fmt.Errorf("failed to read file: %w", err)
	}

	mime := mimetype.Detect(buf.Bytes())
	switch mime.String() {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		return dto.QuestionResponse{}, ErrUnsupportedImage
	}

	url, err := s.uploader.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return dto.QuestionResponse{}, fmt.Errorf("failed to upload image: %w", err)
	}

	question.ImageURL = url
	if err := s.repo.UpdateQuestion(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question, true), nil
}

func (s *quizService) buildQuestion(quizID uint, position int, payload dto.QuestionCreateRequest) (models.Question, error) {
	kind := strings.ToLower(strings.TrimSpace(payload.Kind))

	options := payload.Options
	if kind == models.QuestionKindTrueFalse {
		options = []dto.QuestionOption{{Key: "TRUE", Text: "True"}, {Key: "FALSE", Text: "False"}}
	}

	if len(options) < 2 {
		return models.Question{}, fmt.Errorf("%w: at least two options required", ErrInvalidQuestion)
	}

	known := make(map[string]struct{}, len(options))
	for i := range options {
		key := strings.ToUpper(strings.TrimSpace(options[i].Key))
		if _, dup := known[key]; dup {
			return models.Question{}, fmt.Errorf("%w: duplicate option key %q", ErrInvalidQuestion, key)
		}
		known[key] = struct{}{}
		options[i].Key = key
		options[i].Text = s.sanitizer.Sanitize(strings.TrimSpace(options[i].Text))
	}

	correct := make([]string, 0, len(payload.CorrectKeys))
	for _, k := range payload.CorrectKeys {
		key := strings.ToUpper(strings.TrimSpace(k))
		if _, ok := known[key]; !ok {
			return models.Question{}, fmt.Errorf("%w: correct key %q is not an option", ErrInvalidQuestion, key)
		}
		correct = append(correct, key)
	}

	if kind != models.QuestionKindMultiple && len(correct) != 1 {
		return models.Question{}, fmt.Errorf("%w: %s questions need exactly one correct key", ErrInvalidQuestion, kind)
	}

	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return models.Question{}, err
	}
	correctJSON, err := json.Marshal(correct)
	if err != nil {
		return models.Question{}, err
	}

	weight := payload.Weight
	if weight <= 0 {
		weight = 1
	}

	return models.Question{
		QuizID:      quizID,
		Position:    position,
		Kind:        kind,
		Text:        s.sanitizer.Sanitize(strings.TrimSpace(payload.Text)),
		Options:     datatypes.JSON(optionsJSON),
		CorrectKeys: datatypes.JSON(correctJSON),
		Weight:      weight,
	}, nil
}

func (s *quizService) ownedQuiz(ctx context.Context, ownerID, id uint) (models.Quiz, error) {
	quiz, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Quiz{}, ErrQuizNotFound
		}
		return models.Quiz{}, err
	}

	if quiz.OwnerID != ownerID {
		return models.Quiz{}, ErrNotQuizOwner
	}

	return quiz, nil
}

func (s *quizService) ownedQuizWithQuestions(ctx context.Context, ownerID, id uint) (models.Quiz, error) {
	quiz, err := s.repo.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Quiz{}, ErrQuizNotFound
		}
		return models.Quiz{}, err
	}

	if quiz.OwnerID != ownerID {
		return models.Quiz{}, ErrNotQuizOwner
	}

	return quiz, nil
}
