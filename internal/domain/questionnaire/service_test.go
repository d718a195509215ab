package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	questionnaires map[uuid.UUID]*Questionnaire
	responses      map[uuid.UUID]*Response
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		questionnaires: make(map[uuid.UUID]*Questionnaire),
		responses:      make(map[uuid.UUID]*Response),
	}
}

func (m *mockRepo) Create(_ context.Context, q *Questionnaire) error {
	q.ID = uuid.New()
	cp := *q
	m.questionnaires[q.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Questionnaire, error) {
	q, ok := m.questionnaires[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *mockRepo) GetByProduct(_ context.Context, productID uuid.UUID) (*Questionnaire, error) {
	for _, q := range m.questionnaires {
		if q.ProductID != nil && *q.ProductID == productID && q.Status == StatusPublished {
			cp := *q
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, q *Questionnaire) error {
	if _, ok := m.questionnaires[q.ID]; !ok {
		return ErrNotFound
	}
	cp := *q
	m.questionnaires[q.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, status string, limit, offset int) ([]*Questionnaire, int, error) {
	var out []*Questionnaire
	for _, q := range m.questionnaires {
		if status == "" || q.Status == status {
			out = append(out, q)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) CreateResponse(_ context.Context, r *Response) error {
	r.ID = uuid.New()
	cp := *r
	m.responses[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetResponse(_ context.Context, id uuid.UUID) (*Response, error) {
	r, ok := m.responses[id]
	if !ok {
		return nil, ErrResponseNotFound
	}
	return r, nil
}

func (m *mockRepo) ListResponses(_ context.Context, qid uuid.UUID, limit, offset int) ([]*Response, int, error) {
	var out []*Response
	for _, r := range m.responses {
		if r.QuestionnaireID == qid {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListResponsesByPatient(_ context.Context, pid uuid.UUID, limit, offset int) ([]*Response, int, error) {
	var out []*Response
	for _, r := range m.responses {
		if r.PatientID == pid {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func intakeTemplate() *Questionnaire {
	return &Questionnaire{
		Title: "GLP-1 Intake",
		Questions: []Question{
			{Key: "weight_lbs", Label: "Current weight (lbs)", Kind: KindNumber, Required: true},
			{Key: "pregnant", Label: "Are you pregnant or nursing?", Kind: KindBoolean, Required: true},
			{Key: "allergies", Label: "Known allergies", Kind: KindText},
		},
	}
}

func TestCreateQuestionnaire_StartsDraft(t *testing.T) {
	svc := NewService(newMockRepo())

	q := intakeTemplate()
	if err := svc.CreateQuestionnaire(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestionnaire() error = %v", err)
	}
	if q.Status != StatusDraft {
		t.Fatalf("status = %q, want draft", q.Status)
	}
}

func TestCreateQuestionnaire_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []*Questionnaire{
		{Title: "", Questions: []Question{{Key: "k", Label: "L", Kind: KindText}}},
		{Title: "T"},
		{Title: "T", Questions: []Question{{Key: "k", Label: "L", Kind: "unknown"}}},
		{Title: "T", Questions: []Question{
			{Key: "k", Label: "A", Kind: KindText},
			{Key: "k", Label: "B", Kind: KindText},
		}},
		{Title: "T", Questions: []Question{{Key: "k", Label: "L", Kind: KindSingleSelect}}},
	}
	for i, q := range cases {
		if err := svc.CreateQuestionnaire(context.Background(), q); !errors.Is(err, ErrInvalid) {
			t.Fatalf("case %d: error = %v, want ErrInvalid", i, err)
		}
	}
}

func TestUpdateQuestionnaire_PublishedLocked(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	q := intakeTemplate()
	if err := svc.CreateQuestionnaire(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestionnaire() error = %v", err)
	}
	if err := svc.Publish(context.Background(), q.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	q.Title = "Edited"
	if err := svc.UpdateQuestionnaire(context.Background(), q); !errors.Is(err, ErrInvalid) {
		t.Fatalf("UpdateQuestionnaire() on published error = %v, want ErrInvalid", err)
	}
}

func TestLifecycle_OneDirection(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	q := intakeTemplate()
	if err := svc.CreateQuestionnaire(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestionnaire() error = %v", err)
	}

	// A draft cannot be archived without being published.
	if err := svc.Archive(context.Background(), q.ID); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Archive() on draft error = %v, want ErrInvalid", err)
	}

	if err := svc.Publish(context.Background(), q.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	// Re-publishing a published template is rejected.
	if err := svc.Publish(context.Background(), q.ID); !errors.Is(err, ErrInvalid) {
		t.Fatalf("second Publish() error = %v, want ErrInvalid", err)
	}

	if err := svc.Archive(context.Background(), q.ID); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	// Archived templates never come back.
	if err := svc.Publish(context.Background(), q.ID); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Publish() on archived error = %v, want ErrInvalid", err)
	}
	got, _ := repo.GetByID(context.Background(), q.ID)
	if got.Status != StatusArchived {
		t.Fatalf("status = %q, want archived", got.Status)
	}
}

func TestSubmitResponse(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	q := intakeTemplate()
	if err := svc.CreateQuestionnaire(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestionnaire() error = %v", err)
	}

	resp := &Response{
		QuestionnaireID: q.ID,
		PatientID:       uuid.New(),
		Answers:         json.RawMessage(`{"weight_lbs": 210, "pregnant": false}`),
	}

	// Draft template rejects responses.
	if err := svc.SubmitResponse(context.Background(), resp); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("submit to draft error = %v, want ErrNotPublished", err)
	}

	if err := svc.Publish(context.Background(), q.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := svc.SubmitResponse(context.Background(), resp); err != nil {
		t.Fatalf("SubmitResponse() error = %v", err)
	}
	if resp.ID == uuid.Nil {
		t.Fatal("response id not assigned")
	}
}

func TestSubmitResponse_MissingRequired(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	q := intakeTemplate()
	if err := svc.CreateQuestionnaire(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestionnaire() error = %v", err)
	}
	if err := svc.Publish(context.Background(), q.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	resp := &Response{
		QuestionnaireID: q.ID,
		PatientID:       uuid.New(),
		Answers:         json.RawMessage(`{"weight_lbs": 210}`),
	}
	if err := svc.SubmitResponse(context.Background(), resp); !errors.Is(err, ErrMissingAnswer) {
		t.Fatalf("SubmitResponse() error = %v, want ErrMissingAnswer", err)
	}
}
