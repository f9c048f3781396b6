package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/domain/entity"
	apperrors "finsaathi-ai-api/pkg/errors"
)

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Index(ctx context.Context, req retrieval.IndexRequest) int {
	args := m.Called(ctx, req)
	return args.Int(0)
}

func (m *MockIndexer) IndexStrict(ctx context.Context, req retrieval.IndexRequest) (int, error) {
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

func (m *MockIndexer) DeleteBySource(ctx context.Context, space entity.KnowledgeSpace, ownerID, sourceID string) (int, error) {
	args := m.Called(ctx, space, ownerID, sourceID)
	return args.Int(0), args.Error(1)
}

type memQueue struct {
	jobs []*Job
	err  error
}

func (q *memQueue) Enqueue(_ context.Context, job *Job) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, job)
	return "1-0", nil
}

func TestSubmitIndex_Queued(t *testing.T) {
	q := &memQueue{}
	svc := NewService(new(MockIndexer), q)

	sub, err := svc.SubmitIndex(context.Background(), Job{
		Space: entity.SpaceUserDocs, OwnerID: " u-1 ", SourceID: "doc-1", Text: "PPF statement",
	})
	require.NoError(t, err)
	assert.True(t, sub.Queued)
	assert.NotEmpty(t, sub.JobID)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, OpIndex, q.jobs[0].Op)
	assert.Equal(t, "u-1", q.jobs[0].OwnerID)
	assert.Equal(t, entity.ContentClassDocument, q.jobs[0].Class)
	assert.Equal(t, "knowledge_index", q.jobs[0].Op.MessageType())
}

func TestSubmitIndex_Validation(t *testing.T) {
	svc := NewService(new(MockIndexer), &memQueue{})
	cases := []Job{
		{Space: "bogus", OwnerID: "u", SourceID: "s", Text: "t"},
		{Space: entity.SpaceUserDocs, SourceID: "s", Text: "t"},
		{Space: entity.SpaceUserDocs, OwnerID: "u", Text: "t"},
		{Space: entity.SpaceUserDocs, OwnerID: "u", SourceID: "s", Text: "  "},
	}
	for _, job := range cases {
		_, err := svc.SubmitIndex(context.Background(), job)
		appErr := apperrors.AsAppError(err)
		assert.Equal(t, apperrors.CodeInvalidParam, appErr.Code)
	}
}

func TestSubmitIndex_QueueFailure(t *testing.T) {
	svc := NewService(new(MockIndexer), &memQueue{err: errors.New("redis down")})
	_, err := svc.SubmitIndex(context.Background(), Job{Space: entity.SpaceUserDocs, OwnerID: "u", SourceID: "s", Text: "t"})
	assert.Equal(t, apperrors.CodeIndexFailed, apperrors.AsAppError(err).Code)
}

func TestSubmitIndex_Synchronous(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("Index", mock.Anything, mock.MatchedBy(func(r retrieval.IndexRequest) bool {
		return r.OwnerID == "adv-1" && r.Space == entity.SpaceAdvisorPersona && r.Class == entity.ContentClassAdvisorNote
	})).Return(3)

	svc := NewService(idx, nil)
	sub, err := svc.SubmitIndex(context.Background(), Job{
		Space: entity.SpaceAdvisorPersona, OwnerID: "adv-1", SourceID: "note-1", Text: "note", Class: entity.ContentClassAdvisorNote,
	})
	require.NoError(t, err)
	assert.False(t, sub.Queued)
	assert.Equal(t, 3, sub.Chunks)
	assert.True(t, sub.Indexed)
	idx.AssertExpectations(t)
}

func TestSubmitIndex_SynchronousStoreFailureDegrades(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("Index", mock.Anything, mock.Anything).Return(0)

	svc := NewService(idx, nil)
	sub, err := svc.SubmitIndex(context.Background(), Job{
		Space: entity.SpaceUserDocs, OwnerID: "u-1", SourceID: "doc-1", Text: "salary slip march",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, sub.Chunks)
	assert.False(t, sub.Indexed)
	idx.AssertNotCalled(t, "IndexStrict", mock.Anything, mock.Anything)
}

func TestDelete(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("DeleteBySource", mock.Anything, entity.SpaceUserDocs, "u-1", "doc-1").Return(4, nil).Once()
	idx.On("DeleteBySource", mock.Anything, entity.SpaceUserDocs, "u-1", "doc-2").Return(0, retrieval.ErrVectorDisabled).Once()

	svc := NewService(idx, nil)
	n, err := svc.Delete(context.Background(), entity.SpaceUserDocs, "u-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = svc.Delete(context.Background(), entity.SpaceUserDocs, "u-1", "doc-2")
	assert.Equal(t, apperrors.CodeServiceUnavailable, apperrors.AsAppError(err).Code)
}

func TestHandle(t *testing.T) {
	idx := new(MockIndexer)
	idx.On("IndexStrict", mock.Anything, mock.Anything).Return(0, errors.New("milvus timeout")).Once()
	idx.On("IndexStrict", mock.Anything, mock.Anything).Return(0, retrieval.ErrInvalidRequest).Once()
	idx.On("DeleteBySource", mock.Anything, entity.SpaceUserDocs, "u", "s").Return(2, nil).Once()

	svc := NewService(idx, nil)
	job := &Job{Op: OpIndex, Space: entity.SpaceUserDocs, OwnerID: "u", SourceID: "s", Text: "t"}

	assert.Error(t, svc.Handle(context.Background(), job), "transient failures are retried")
	assert.NoError(t, svc.Handle(context.Background(), job), "invalid jobs are dropped")

	job.Op = OpDelete
	assert.NoError(t, svc.Handle(context.Background(), job))
	job.Op = "rebuild"
	assert.NoError(t, svc.Handle(context.Background(), job))
	idx.AssertExpectations(t)
}
