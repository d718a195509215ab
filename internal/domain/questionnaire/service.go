package questionnaire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateQuestionnaire(ctx context.Context, q *Questionnaire) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	q.Status = StatusDraft
	return s.repo.Create(ctx, q)
}

func (s *Service) GetQuestionnaire(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	return s.repo.GetByID(ctx, id)
}

// GetIntakeForProduct returns the published questionnaire attached to a
// product, for the checkout flow.
func (s *Service) GetIntakeForProduct(ctx context.Context, productID uuid.UUID) (*Questionnaire, error) {
	return s.repo.GetByProduct(ctx, productID)
}

// UpdateQuestionnaire edits a template. Published templates cannot be edited
// in place: responses already reference their question keys.
func (s *Service) UpdateQuestionnaire(ctx context.Context, q *Questionnaire) error {
	current, err := s.repo.GetByID(ctx, q.ID)
	if err != nil {
		return err
	}
	if current.Status == StatusPublished {
		return fmt.Errorf("%w: published questionnaires cannot be edited, archive and recreate", ErrInvalid)
	}
	if err := q.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	q.Status = current.Status
	return s.repo.Update(ctx, q)
}

// Publish opens a draft template for responses. Archived templates stay
// archived: responses reference their question keys, so they never come back.
func (s *Service) Publish(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusDraft, StatusPublished)
}

func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusPublished, StatusArchived)
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if q.Status != from {
		return fmt.Errorf("%w: cannot move %s questionnaire to %s", ErrInvalid, q.Status, to)
	}
	q.Status = to
	return s.repo.Update(ctx, q)
}

func (s *Service) ListQuestionnaires(ctx context.Context, status string, limit, offset int) ([]*Questionnaire, int, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// SubmitResponse validates a patient's answers against the template and
// stores them. Only published templates accept responses; all required
// questions must be answered.
func (s *Service) SubmitResponse(ctx context.Context, resp *Response) error {
	q, err := s.repo.GetByID(ctx, resp.QuestionnaireID)
	if err != nil {
		return err
	}
	if q.Status != StatusPublished {
		return ErrNotPublished
	}
	if resp.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}

	var answers map[string]interface{}
	if err := json.Unmarshal(resp.Answers, &answers); err != nil {
		return fmt.Errorf("%w: answers must be a JSON object", ErrInvalid)
	}
	for _, qu := range q.Questions {
		v, ok := answers[qu.Key]
		if qu.Required && (!ok || v == nil || v == "") {
			return fmt.Errorf("%w: %s", ErrMissingAnswer, qu.Key)
		}
	}

	return s.repo.CreateResponse(ctx, resp)
}

func (s *Service) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	return s.repo.GetResponse(ctx, id)
}

func (s *Service) ListResponses(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*Response, int, error) {
	return s.repo.ListResponses(ctx, questionnaireID, limit, offset)
}

func (s *Service) ListResponsesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Response, int, error) {
	return s.repo.ListResponsesByPatient(ctx, patientID, limit, offset)
}
