package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/short-link/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/short-link/internal/entity"
	"github.com/vadimbarashkov/short-link/internal/shortcode"
)

type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Save(ctx context.Context, code, originalURL string) (*entity.ShortLink, error) {
	args := m.Called(ctx, code, originalURL)
	if link, ok := args.Get(0).(*entity.ShortLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLinkRepository) RetrieveByCode(ctx context.Context, code string) (*entity.ShortLink, error) {
	args := m.Called(ctx, code)
	if link, ok := args.Get(0).(*entity.ShortLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLinkRepository) RetrieveAndUpdateStats(ctx context.Context, code string) (*entity.ShortLink, error) {
	args := m.Called(ctx, code)
	if link, ok := args.Get(0).(*entity.ShortLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLinkRepository) Remove(ctx context.Context, code string) (*entity.ShortLink, error) {
	args := m.Called(ctx, code)
	if link, ok := args.Get(0).(*entity.ShortLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type LinkUseCaseTestSuite struct {
	suite.Suite
	errUnknown error
	repoMock   *MockLinkRepository
	genMock    *MockCodeGenerator
	uc         *LinkUseCase
}

func (suite *LinkUseCaseTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
}

func (suite *LinkUseCaseTestSuite) SetupSubTest() {
	suite.repoMock = new(MockLinkRepository)
	suite.genMock = new(MockCodeGenerator)
	suite.uc = NewLinkUseCase(suite.repoMock, suite.genMock, WithMaxRetries(3))
}

func (suite *LinkUseCaseTestSuite) TearDownSubTest() {
	suite.repoMock.AssertExpectations(suite.T())
	suite.genMock.AssertExpectations(suite.T())
}

func (suite *LinkUseCaseTestSuite) TestShorten() {
	suite.Run("invalid url", func() {
		for _, raw := range []string{"", "not-a-url", "example.com/page", "/relative/path", "mailto:user@example.com"} {
			link, err := suite.uc.Shorten(context.Background(), raw)

			suite.ErrorIs(err, entity.ErrInvalidURL, raw)
			suite.Nil(link)
		}
	})

	suite.Run("code generation error", func() {
		suite.genMock.On("Generate").Once().Return("", suite.errUnknown)

		link, err := suite.uc.Shorten(context.Background(), "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(link)
	})

	suite.Run("retries exhausted", func() {
		suite.genMock.On("Generate").Times(3).Return("abc123", nil)
		suite.repoMock.
			On("Save", context.Background(), "abc123", "https://example.com").
			Times(3).
			Return(nil, entity.ErrCodeExists)

		link, err := suite.uc.Shorten(context.Background(), "https://example.com")

		suite.ErrorIs(err, entity.ErrCodeGenerationExhausted)
		suite.Nil(link)
	})

	suite.Run("unknown error", func() {
		suite.genMock.On("Generate").Once().Return("abc123", nil)
		suite.repoMock.
			On("Save", context.Background(), "abc123", "https://example.com").
			Once().
			Return(nil, suite.errUnknown)

		link, err := suite.uc.Shorten(context.Background(), "https://example.com")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(link)
	})

	suite.Run("success after collision", func() {
		suite.genMock.On("Generate").Once().Return("taken1", nil)
		suite.genMock.On("Generate").Once().Return("abc123", nil)
		suite.repoMock.
			On("Save", context.Background(), "taken1", "https://example.com").
			Once().
			Return(nil, entity.ErrCodeExists)
		suite.repoMock.
			On("Save", context.Background(), "abc123", "https://example.com").
			Once().
			Return(&entity.ShortLink{Code: "abc123", OriginalURL: "https://example.com"}, nil)

		link, err := suite.uc.Shorten(context.Background(), "https://example.com")

		suite.NoError(err)
		suite.Require().NotNil(link)
		suite.Equal("abc123", link.Code)
		suite.Equal("https://example.com", link.OriginalURL)
	})
}

func (suite *LinkUseCaseTestSuite) TestExpand() {
	suite.Run("empty code", func() {
		link, err := suite.uc.Expand(context.Background(), "")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("link not found", func() {
		suite.repoMock.
			On("RetrieveAndUpdateStats", context.Background(), "abc123").
			Once().
			Return(nil, entity.ErrLinkNotFound)

		link, err := suite.uc.Expand(context.Background(), "abc123")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.repoMock.
			On("RetrieveAndUpdateStats", context.Background(), "abc123").
			Once().
			Return(&entity.ShortLink{Code: "abc123", OriginalURL: "https://example.com", VisitCount: 1}, nil)

		link, err := suite.uc.Expand(context.Background(), "abc123")

		suite.NoError(err)
		suite.Equal("https://example.com", link.OriginalURL)
		suite.Equal(int64(1), link.VisitCount)
	})
}

func (suite *LinkUseCaseTestSuite) TestStats() {
	suite.Run("empty code", func() {
		link, err := suite.uc.Stats(context.Background(), "")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("unknown error", func() {
		suite.repoMock.
			On("RetrieveByCode", context.Background(), "abc123").
			Once().
			Return(nil, suite.errUnknown)

		link, err := suite.uc.Stats(context.Background(), "abc123")

		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.repoMock.
			On("RetrieveByCode", context.Background(), "abc123").
			Once().
			Return(&entity.ShortLink{Code: "abc123", OriginalURL: "https://example.com", VisitCount: 7}, nil)

		link, err := suite.uc.Stats(context.Background(), "abc123")

		suite.NoError(err)
		suite.Equal(int64(7), link.VisitCount)
	})
}

func (suite *LinkUseCaseTestSuite) TestDelete() {
	suite.Run("empty code", func() {
		link, err := suite.uc.Delete(context.Background(), "")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("link not found", func() {
		suite.repoMock.
			On("Remove", context.Background(), "abc123").
			Once().
			Return(nil, entity.ErrLinkNotFound)

		link, err := suite.uc.Delete(context.Background(), "abc123")

		suite.ErrorIs(err, entity.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		suite.repoMock.
			On("Remove", context.Background(), "abc123").
			Once().
			Return(&entity.ShortLink{Code: "abc123", OriginalURL: "https://example.com"}, nil)

		link, err := suite.uc.Delete(context.Background(), "abc123")

		suite.NoError(err)
		suite.Equal("abc123", link.Code)
	})
}

func TestLinkUseCase(t *testing.T) {
	suite.Run(t, new(LinkUseCaseTestSuite))
}

func newMemoryUseCase(t *testing.T) *LinkUseCase {
	t.Helper()

	gen, err := shortcode.New("", shortcode.DefaultLength)
	require.NoError(t, err)

	return NewLinkUseCase(memory.NewLinkRepository(), gen)
}

func TestLinkUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	uc := newMemoryUseCase(t)

	created, err := uc.Shorten(ctx, "https://example.com/page")
	require.NoError(t, err)
	assert.Len(t, created.Code, shortcode.DefaultLength)
	assert.Equal(t, "https://example.com/page", created.OriginalURL)
	assert.Zero(t, created.VisitCount)
	assert.False(t, created.CreatedAt.IsZero())

	expanded, err := uc.Expand(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", expanded.OriginalURL)
	assert.Equal(t, int64(1), expanded.VisitCount)
	require.NotNil(t, expanded.LastAccessedAt)

	stats, err := uc.Stats(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.VisitCount)
	assert.Equal(t, created.CreatedAt, stats.CreatedAt)

	deleted, err := uc.Delete(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, created.Code, deleted.Code)

	_, err = uc.Expand(ctx, created.Code)
	assert.ErrorIs(t, err, entity.ErrLinkNotFound)

	_, err = uc.Stats(ctx, created.Code)
	assert.ErrorIs(t, err, entity.ErrLinkNotFound)

	_, err = uc.Delete(ctx, created.Code)
	assert.ErrorIs(t, err, entity.ErrLinkNotFound)
}

func TestLinkUseCase_StatsDoesNotCountVisits(t *testing.T) {
	ctx := context.Background()
	uc := newMemoryUseCase(t)

	created, err := uc.Shorten(ctx, "https://example.com")
	require.NoError(t, err)

	for range 5 {
		stats, err := uc.Stats(ctx, created.Code)
		require.NoError(t, err)
		assert.Zero(t, stats.VisitCount)
		assert.Nil(t, stats.LastAccessedAt)
	}
}

func TestLinkUseCase_ConcurrentShorten(t *testing.T) {
	ctx := context.Background()
	uc := newMemoryUseCase(t)

	const n = 1000
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]struct{}, n)
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			link, err := uc.Shorten(ctx, "https://example.com")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			codes[link.Code] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, codes, n)
}

func TestLinkUseCase_ConcurrentExpand(t *testing.T) {
	ctx := context.Background()
	uc := newMemoryUseCase(t)

	created, err := uc.Shorten(ctx, "https://example.com")
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Expand(ctx, created.Code)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := uc.Stats(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stats.VisitCount)
}

func TestLinkUseCase_ExhaustedOnTinyCodeSpace(t *testing.T) {
	ctx := context.Background()

	gen, err := shortcode.New("ab", 1)
	require.NoError(t, err)

	uc := NewLinkUseCase(memory.NewLinkRepository(), gen, WithMaxRetries(50))

	for range 2 {
		_, err := uc.Shorten(ctx, "https://example.com")
		require.NoError(t, err)
	}

	_, err = uc.Shorten(ctx, "https://example.com")
	assert.ErrorIs(t, err, entity.ErrCodeGenerationExhausted)
}
