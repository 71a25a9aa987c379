package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"shortener/internal/model"
	"shortener/internal/repository"
	"shortener/internal/shortcode"
)

// MockURLRepository is a mock implementation of repository.URLRepository
type MockURLRepository struct {
	mock.Mock
}

func (m *MockURLRepository) Create(ctx context.Context, url *model.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockURLRepository) GetByShortCode(ctx context.Context, code string) (*model.URL, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

func (m *MockURLRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockURLRepository) ListByUser(ctx context.Context, userID string, filter *repository.ListFilter, offset, limit int) ([]model.URL, error) {
	args := m.Called(ctx, userID, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.URL), args.Error(1)
}

func (m *MockURLRepository) CountByUser(ctx context.Context, userID string, filter *repository.ListFilter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockURLRepository) Update(ctx context.Context, url *model.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockURLRepository) Delete(ctx context.Context, url *model.URL) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockURLRepository) IncrementClicks(ctx context.Context, id string) (*model.URL, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

func (m *MockURLRepository) ResolveActive(ctx context.Context, code string) (*model.URL, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.URL), args.Error(1)
}

// seqGenerator returns a fixed sequence of codes and records the
// lengths it was asked for.
type seqGenerator struct {
	codes   []string
	lengths []int
	next    int
}

func (g *seqGenerator) Generate(length int) (string, error) {
	g.lengths = append(g.lengths, length)
	if g.next >= len(g.codes) {
		return "", errors.New("sequence exhausted")
	}
	code := g.codes[g.next]
	g.next++
	return code, nil
}

func setupURLService(t *testing.T, codes ...string) (*URLService, *MockURLRepository, *seqGenerator) {
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	mockRepo := new(MockURLRepository)
	gen := &seqGenerator{codes: codes}
	svc := NewURLService(mockRepo, gen)

	return svc, mockRepo, gen
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreate_PreferredCodeFree(t *testing.T) {
	svc, mockRepo, gen := setupURLService(t)
	ctx := context.Background()

	mockRepo.On("CodeExists", ctx, "nord").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).Return(nil).Once()

	url, err := svc.Create(ctx, "user-1", CreateURLInput{
		OriginalURL:   "https://example.com",
		PreferredCode: strPtr("nord"),
	})

	assert.NoError(t, err)
	assert.Equal(t, "nord", url.ShortCode)
	assert.Equal(t, "user-1", url.UserID)
	assert.Equal(t, int64(0), url.Clicks)
	assert.True(t, url.IsActive)
	assert.Empty(t, gen.lengths, "generator should not run when the preferred code is free")
	mockRepo.AssertExpectations(t)
}

func TestCreate_PreferredCodeTaken_FallsBackSilently(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t, "xK9pQ2")
	ctx := context.Background()

	mockRepo.On("CodeExists", ctx, "nord").Return(true, nil).Once()
	mockRepo.On("CodeExists", ctx, "xK9pQ2").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).Return(nil).Once()

	url, err := svc.Create(ctx, "user-1", CreateURLInput{
		OriginalURL:   "https://example.com",
		PreferredCode: strPtr("nord"),
	})

	assert.NoError(t, err, "a taken preferred code must not surface an error")
	assert.Equal(t, "xK9pQ2", url.ShortCode)
	mockRepo.AssertExpectations(t)
}

func TestCreate_PreferredCodeReserved(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	for _, reserved := range []string{"admin", "Admin", "API", "login"} {
		_, err := svc.Create(ctx, "user-1", CreateURLInput{
			OriginalURL:   "https://example.com",
			PreferredCode: strPtr(reserved),
		})
		assert.ErrorIs(t, err, ErrReservedCode, "code %q should be reserved", reserved)
	}

	mockRepo.AssertNotCalled(t, "CodeExists")
	mockRepo.AssertNotCalled(t, "Create")
}

func TestCreate_PreferredCodeMalformed(t *testing.T) {
	svc, _, _ := setupURLService(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		code string
	}{
		{"too short", "ab"},
		{"invalid characters", "abc!@#"},
		{"with spaces", "abc 123"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "user-1", CreateURLInput{
				OriginalURL:   "https://example.com",
				PreferredCode: strPtr(tc.code),
			})
			assert.ErrorIs(t, err, ErrInvalidCode)
		})
	}
}

func TestCreate_InvalidURL(t *testing.T) {
	svc, _, _ := setupURLService(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		url  string
	}{
		{"empty URL", ""},
		{"no scheme", "example.com"},
		{"unsupported scheme", "ftp://example.com"},
		{"missing host", "http://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "user-1", CreateURLInput{OriginalURL: tc.url})
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}

func TestCreate_RandomCode(t *testing.T) {
	svc, mockRepo, gen := setupURLService(t, "xK9pQ2")
	ctx := context.Background()

	mockRepo.On("CodeExists", ctx, "xK9pQ2").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).Return(nil).Once()

	url, err := svc.Create(ctx, "user-1", CreateURLInput{OriginalURL: "https://example.com"})

	assert.NoError(t, err)
	assert.Equal(t, "xK9pQ2", url.ShortCode)
	assert.Equal(t, []int{shortcode.DefaultLength}, gen.lengths)
	mockRepo.AssertExpectations(t)
}

func TestCreate_RetryBudgetExhausted(t *testing.T) {
	svc, mockRepo, gen := setupURLService(t, "c1", "c2", "c3", "c4", "c5")
	ctx := context.Background()

	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).
		Return(true, nil).Times(maxCodeAttempts)

	_, err := svc.Create(ctx, "user-1", CreateURLInput{OriginalURL: "https://example.com"})

	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	// Only the final attempt escalates the length.
	assert.Equal(t, []int{6, 6, 6, 6, 7}, gen.lengths)
	mockRepo.AssertExpectations(t)
}

func TestCreate_InsertCollisionConsumesAttempt(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t, "first1", "second")
	ctx := context.Background()

	// Both pre-checks say the code is free, but the first insert loses
	// a race and hits the unique index.
	mockRepo.On("CodeExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Twice()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).
		Return(repository.ErrCodeExists).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).
		Return(nil).Once()

	url, err := svc.Create(ctx, "user-1", CreateURLInput{OriginalURL: "https://example.com"})

	assert.NoError(t, err)
	assert.Equal(t, "second", url.ShortCode)
	mockRepo.AssertExpectations(t)
}

func TestCreate_PreferredLosesInsertRace(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t, "xK9pQ2")
	ctx := context.Background()

	mockRepo.On("CodeExists", ctx, "nord").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).
		Return(repository.ErrCodeExists).Once()
	mockRepo.On("CodeExists", ctx, "xK9pQ2").Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*model.URL")).
		Return(nil).Once()

	url, err := svc.Create(ctx, "user-1", CreateURLInput{
		OriginalURL:   "https://example.com",
		PreferredCode: strPtr("nord"),
	})

	assert.NoError(t, err)
	assert.Equal(t, "xK9pQ2", url.ShortCode)
	mockRepo.AssertExpectations(t)
}

func TestGetByCode_Success(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	mockRepo.On("GetByShortCode", ctx, "abc123").Return(stored, nil)

	url, err := svc.GetByCode(ctx, "abc123")

	assert.NoError(t, err)
	assert.Equal(t, stored, url)
	mockRepo.AssertExpectations(t)
}

func TestGetByCode_NotFound(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	mockRepo.On("GetByShortCode", ctx, "nope99").Return(nil, repository.ErrURLNotFound)

	_, err := svc.GetByCode(ctx, "nope99")

	assert.ErrorIs(t, err, ErrURLNotFound)
	mockRepo.AssertExpectations(t)
}

func TestGetByCode_Gone(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	stored.IsActive = false
	mockRepo.On("GetByShortCode", ctx, "abc123").Return(stored, nil)

	_, err := svc.GetByCode(ctx, "abc123")

	assert.ErrorIs(t, err, ErrURLGone)
	assert.NotErrorIs(t, err, ErrURLNotFound, "deactivated must be distinguishable from missing")
	mockRepo.AssertExpectations(t)
}

func TestUpdate_Forbidden(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	mockRepo.On("GetByShortCode", ctx, "abc123").Return(stored, nil)

	_, err := svc.Update(ctx, "abc123", "user-2", UpdateURLInput{Title: strPtr("mine now")})

	assert.ErrorIs(t, err, ErrForbidden)
	mockRepo.AssertNotCalled(t, "Update")
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", strPtr("old title"))
	previousUpdatedAt := stored.UpdatedAt
	mockRepo.On("GetByShortCode", ctx, "abc123").Return(stored, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*model.URL")).Return(nil)

	url, err := svc.Update(ctx, "abc123", "user-1", UpdateURLInput{IsActive: boolPtr(false)})

	assert.NoError(t, err)
	assert.False(t, url.IsActive)
	assert.Equal(t, "old title", *url.Title, "omitted fields must stay untouched")
	assert.True(t, url.UpdatedAt.After(previousUpdatedAt) || url.UpdatedAt.Equal(previousUpdatedAt))
	mockRepo.AssertExpectations(t)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	mockRepo.On("GetByShortCode", ctx, "nope99").Return(nil, repository.ErrURLNotFound)

	_, err := svc.Update(ctx, "nope99", "user-1", UpdateURLInput{Title: strPtr("title")})

	assert.ErrorIs(t, err, ErrURLNotFound)
}

func TestDelete_Forbidden(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	mockRepo.On("GetByShortCode", ctx, "abc123").Return(stored, nil)

	err := svc.Delete(ctx, "abc123", "user-2")

	assert.ErrorIs(t, err, ErrForbidden)
	mockRepo.AssertNotCalled(t, "Delete")
}

func TestDelete_Success(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	mockRepo.On("GetByShortCode", ctx, "abc123").Return(stored, nil)
	mockRepo.On("Delete", ctx, stored).Return(nil)

	err := svc.Delete(ctx, "abc123", "user-1")

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestRecordView_Success(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	viewed := *stored
	viewed.Clicks = stored.Clicks + 1

	mockRepo.On("ResolveActive", ctx, "abc123").Return(stored, nil)
	mockRepo.On("IncrementClicks", ctx, stored.ID).Return(&viewed, nil)

	url, err := svc.RecordView(ctx, "abc123")

	assert.NoError(t, err)
	assert.Equal(t, stored.Clicks+1, url.Clicks)
	mockRepo.AssertExpectations(t)
}

func TestRecordView_Gone(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	stored.IsActive = false
	mockRepo.On("ResolveActive", ctx, "abc123").Return(stored, nil)

	_, err := svc.RecordView(ctx, "abc123")

	assert.ErrorIs(t, err, ErrURLGone)
	mockRepo.AssertNotCalled(t, "IncrementClicks")
}

func TestRecordView_NotFound(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	mockRepo.On("ResolveActive", ctx, "nope99").Return(nil, repository.ErrURLNotFound)

	_, err := svc.RecordView(ctx, "nope99")

	assert.ErrorIs(t, err, ErrURLNotFound)
}

func TestRecordView_DeletedBetweenResolveAndIncrement(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	stored := model.NewURL("https://example.com", "abc123", "user-1", nil)
	mockRepo.On("ResolveActive", ctx, "abc123").Return(stored, nil)
	mockRepo.On("IncrementClicks", ctx, stored.ID).Return(nil, repository.ErrURLNotFound)

	_, err := svc.RecordView(ctx, "abc123")

	assert.ErrorIs(t, err, ErrURLNotFound)
}

func TestListByUser_PaginationDefaults(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	mockRepo.On("ListByUser", ctx, "user-1", (*repository.ListFilter)(nil), 0, 20).
		Return([]model.URL{}, nil)
	mockRepo.On("CountByUser", ctx, "user-1", (*repository.ListFilter)(nil)).
		Return(int64(42), nil)

	urls, total, err := svc.ListByUser(ctx, "user-1", 0, 0, nil)

	assert.NoError(t, err)
	assert.Empty(t, urls)
	assert.Equal(t, int64(42), total, "total reflects the full matching count")
	mockRepo.AssertExpectations(t)
}

func TestListByUser_PageSizeClamped(t *testing.T) {
	svc, mockRepo, _ := setupURLService(t)
	ctx := context.Background()

	mockRepo.On("ListByUser", ctx, "user-1", (*repository.ListFilter)(nil), 100, 100).
		Return([]model.URL{}, nil)
	mockRepo.On("CountByUser", ctx, "user-1", (*repository.ListFilter)(nil)).
		Return(int64(0), nil)

	_, _, err := svc.ListByUser(ctx, "user-1", 2, 500, nil)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}
