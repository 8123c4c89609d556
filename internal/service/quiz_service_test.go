package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/repository"
)

func newQuizEnv(t *testing.T) QuizService {
	t.Helper()
	db := setupServiceDB(t)
	return NewQuizService(repository.NewQuizRepository(db), testValidator(), nil, testLogger())
}

func TestQuizServiceAddQuestionNormalizes(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Go Basics"})
	require.NoError(t, err)

	question, err := svc.AddQuestion(context.Background(), 1, quiz.ID, dto.QuestionCreateRequest{
		Kind: "single",
		Text: "Which keyword declares a <script>alert(1)</script>variable?",
		Options: []dto.QuestionOption{
			{Key: "a", Text: "var"},
			{Key: "b", Text: "def"},
		},
		CorrectKeys: []string{"a"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, question.Position)
	require.Equal(t, []string{"A"}, question.CorrectKeys, "keys are uppercased")
	require.NotContains(t, question.Text, "<script>", "markup is stripped")
	require.Equal(t, float64(1), question.Weight, "weight defaults to 1")

	// True/false questions get fixed options regardless of the payload.
	tf, err := svc.AddQuestion(context.Background(), 1, quiz.ID, dto.QuestionCreateRequest{
		Kind:        "truefalse",
		Text:        "Slices are reference types.",
		CorrectKeys: []string{"true"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, tf.Position)
	require.Len(t, tf.Options, 2)
	require.Equal(t, []string{"TRUE"}, tf.CorrectKeys)
}

func TestQuizServiceAddQuestionRejectsBadPayloads(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Go Basics"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		payload dto.QuestionCreateRequest
	}{
		{
			name: "single question with two correct keys",
			payload: dto.QuestionCreateRequest{
				Kind: "single", Text: "Pick one",
				Options:     []dto.QuestionOption{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}},
				CorrectKeys: []string{"A", "B"},
			},
		},
		{
			name: "correct key not among options",
			payload: dto.QuestionCreateRequest{
				Kind: "single", Text: "Pick one",
				Options:     []dto.QuestionOption{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}},
				CorrectKeys: []string{"C"},
			},
		},
		{
			name: "duplicate option keys",
			payload: dto.QuestionCreateRequest{
				Kind: "single", Text: "Pick one",
				Options:     []dto.QuestionOption{{Key: "A", Text: "x"}, {Key: "a", Text: "y"}},
				CorrectKeys: []string{"A"},
			},
		},
		{
			name: "too few options",
			payload: dto.QuestionCreateRequest{
				Kind: "single", Text: "Pick one",
				Options:     []dto.QuestionOption{{Key: "A", Text: "x"}},
				CorrectKeys: []string{"A"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddQuestion(context.Background(), 1, quiz.ID, tc.payload)
			require.ErrorIs(t, err, ErrInvalidQuestion)
		})
	}
}

func TestQuizServiceOwnershipGuard(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Go Basics"})
	require.NoError(t, err)

	_, _, err = svc.Get(context.Background(), 2, quiz.ID)
	require.ErrorIs(t, err, ErrNotQuizOwner)

	err = svc.Delete(context.Background(), 2, quiz.ID)
	require.ErrorIs(t, err, ErrNotQuizOwner)

	_, _, err = svc.Get(context.Background(), 1, 9999)
	require.ErrorIs(t, err, ErrQuizNotFound)
}
