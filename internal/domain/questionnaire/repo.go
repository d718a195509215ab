package questionnaire

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, q *Questionnaire) error
	GetByID(ctx context.Context, id uuid.UUID) (*Questionnaire, error)
	GetByProduct(ctx context.Context, productID uuid.UUID) (*Questionnaire, error)
	Update(ctx context.Context, q *Questionnaire) error
	List(ctx context.Context, status string, limit, offset int) ([]*Questionnaire, int, error)

	CreateResponse(ctx context.Context, r *Response) error
	GetResponse(ctx context.Context, id uuid.UUID) (*Response, error)
	ListResponses(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*Response, int, error)
	ListResponsesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Response, int, error)
}
