// Package questionnaire manages intake templates and patient-submitted
// responses. A questionnaire can be attached to a product so checkout
// requires a completed intake before the order reaches a doctor.
package questionnaire

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("questionnaire not found")
	ErrResponseNotFound = errors.New("questionnaire response not found")
	ErrInvalid          = errors.New("invalid questionnaire")
	ErrNotPublished     = errors.New("questionnaire is not accepting responses")
	ErrMissingAnswer    = errors.New("required question not answered")
)

// Questionnaire lifecycle.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Question kinds understood by the portals.
const (
	KindText         = "text"
	KindNumber       = "number"
	KindBoolean      = "boolean"
	KindSingleSelect = "single_select"
	KindMultiSelect  = "multi_select"
)

// Question is one entry in a template. Stored as JSONB: the portals render
// templates dynamically and the shape evolves without migrations.
type Question struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type Questionnaire struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Status      string     `json:"status"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Response is a patient's submitted intake. Answers are keyed by Question.Key.
type Response struct {
	ID              uuid.UUID       `json:"id"`
	QuestionnaireID uuid.UUID       `json:"questionnaire_id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	Answers         json.RawMessage `json:"answers"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

func (q *Questionnaire) Validate() error {
	if q.Title == "" {
		return errors.New("title is required")
	}
	if len(q.Questions) == 0 {
		return errors.New("at least one question is required")
	}
	seen := make(map[string]bool, len(q.Questions))
	for _, qu := range q.Questions {
		if qu.Key == "" || qu.Label == "" {
			return errors.New("every question needs a key and a label")
		}
		if seen[qu.Key] {
			return errors.New("duplicate question key: " + qu.Key)
		}
		seen[qu.Key] = true
		switch qu.Kind {
		case KindText, KindNumber, KindBoolean:
		case KindSingleSelect, KindMultiSelect:
			if len(qu.Options) == 0 {
				return errors.New("select questions need options: " + qu.Key)
			}
		default:
			return errors.New("unknown question kind: " + qu.Kind)
		}
	}
	return nil
}
