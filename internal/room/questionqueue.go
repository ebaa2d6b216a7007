package room

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
)

// Question is one queued audience question.
type Question struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Answered   bool      `json:"answered"`
}

// QuestionQueue keeps audience questions in insertion order. Answered is a
// one-way flag; there is no unanswer operation.
type QuestionQueue struct {
	base
	limits    Limits
	questions []Question
}

func newQuestionQueue(key Key, limits Limits, now time.Time) *QuestionQueue {
	return &QuestionQueue{
		base:   newBase(key, now),
		limits: limits,
	}
}

// Submit appends a question to the queue.
func (q *QuestionQueue) Submit(authorID, authorName, text string, now time.Time) (Question, error) {
	if err := q.gate(); err != nil {
		return Question{}, err
	}
	if q.limits.MaxSubmissions > 0 && len(q.questions) >= q.limits.MaxSubmissions {
		return Question{}, apperrors.ErrRoomFull
	}
	if text == "" {
		return Question{}, apperrors.NewInvalidInput("question text must not be empty")
	}
	if utf8.RuneCountInString(text) > q.limits.ContentMaxLen {
		return Question{}, apperrors.NewInvalidInput(
			fmt.Sprintf("question exceeds %d characters", q.limits.ContentMaxLen))
	}

	question := Question{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		AuthorName: authorName,
		Text:       text,
		Timestamp:  now,
	}
	q.questions = append(q.questions, question)
	return question, nil
}

// MarkAnswered flags a question as answered. Marking an already answered
// question succeeds without change.
func (q *QuestionQueue) MarkAnswered(id string) error {
	for i := range q.questions {
		if q.questions[i].ID == id {
			q.questions[i].Answered = true
			return nil
		}
	}
	return apperrors.NewInvalidInput(fmt.Sprintf("unknown question id %q", id))
}

// Delete removes a question from the queue.
func (q *QuestionQueue) Delete(id string) error {
	for i := range q.questions {
		if q.questions[i].ID == id {
			q.questions = append(q.questions[:i], q.questions[i+1:]...)
			return nil
		}
	}
	return apperrors.NewInvalidInput(fmt.Sprintf("unknown question id %q", id))
}

// Clear removes every question.
func (q *QuestionQueue) Clear() {
	q.questions = nil
}

// Questions returns the queue in insertion order.
func (q *QuestionQueue) Questions() []Question {
	out := make([]Question, len(q.questions))
	copy(out, q.questions)
	return out
}

func (q *QuestionQueue) RemoveParticipant(string) {}

func (q *QuestionQueue) Snapshot() Snapshot {
	return Snapshot{
		Kind:       q.key.Kind,
		ActivityID: q.key.ActivityID,
		IsActive:   q.isActive,
		Data: map[string]any{
			"questions": q.Questions(),
		},
	}
}
