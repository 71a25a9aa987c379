package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"shortener/internal/metrics"
	"shortener/internal/model"
	"shortener/internal/repository"
	"shortener/internal/shortcode"
)

var (
	ErrInvalidURL   = errors.New("invalid URL format")
	ErrInvalidCode  = errors.New("invalid short code format")
	ErrReservedCode = errors.New("short code is reserved")
	ErrURLNotFound  = errors.New("short URL not found")
	ErrURLGone      = errors.New("short URL has been deactivated")
	ErrForbidden    = errors.New("not the owner of this URL")

	// ErrCodeSpaceExhausted signals code-space pressure: every draw in
	// the retry budget collided. It is a server-side fault, not a
	// client error.
	ErrCodeSpaceExhausted = errors.New("unable to allocate a unique short code")
)

// maxCodeAttempts bounds random code draws per allocation. The final
// attempt draws one character longer to escape a crowded length.
const maxCodeAttempts = 5

// Codes matching a route the server owns can never be allocated,
// case-insensitive.
var reservedCodes = map[string]struct{}{
	"api":    {},
	"admin":  {},
	"login":  {},
	"signup": {},
	"logout": {},
	"docs":   {},
	"redoc":  {},
	"auth":   {},
}

var codePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// CreateURLInput carries the caller's allocation request. A taken
// PreferredCode is best-effort: allocation silently falls back to a
// random code rather than failing.
type CreateURLInput struct {
	OriginalURL   string
	PreferredCode *string
	Title         *string
}

// UpdateURLInput applies partial updates: nil fields are left
// untouched.
type UpdateURLInput struct {
	Title    *string
	IsActive *bool
}

// URLService owns short-code allocation, ownership-checked mutation
// and resolution with click accounting.
type URLService struct {
	repo      repository.URLRepository
	generator shortcode.Generator
	logger    *zap.Logger
}

func NewURLService(repo repository.URLRepository, generator shortcode.Generator) *URLService {
	return &URLService{
		repo:      repo,
		generator: generator,
		logger:    zap.L().With(zap.String("component", "URLService")),
	}
}

// Create allocates a short code for originalURL and persists the
// mapping owned by userID.
func (s *URLService) Create(ctx context.Context, userID string, input CreateURLInput) (*model.URL, error) {
	if !isValidURL(input.OriginalURL) {
		return nil, ErrInvalidURL
	}

	if input.PreferredCode != nil && *input.PreferredCode != "" {
		preferred := *input.PreferredCode
		if err := validatePreferredCode(preferred); err != nil {
			return nil, err
		}

		taken, err := s.repo.CodeExists(ctx, preferred)
		if err != nil {
			return nil, err
		}
		if !taken {
			created, err := s.persist(ctx, userID, input, preferred)
			if err == nil {
				metrics.CodeAllocations.WithLabelValues("preferred").Inc()
				return created, nil
			}
			if !errors.Is(err, repository.ErrCodeExists) {
				return nil, err
			}
			// Lost the race for the preferred code at insert time.
		}
		s.logger.Info("Preferred short code taken, generating random code",
			zap.String("preferred_code", preferred))
		metrics.CodeAllocations.WithLabelValues("fallback").Inc()
	}

	return s.allocateRandom(ctx, userID, input)
}

// allocateRandom draws random codes until one persists. Both a
// pre-check hit and a uniqueness violation at insert time consume an
// attempt: the unique index is the final arbiter under concurrency.
func (s *URLService) allocateRandom(ctx context.Context, userID string, input CreateURLInput) (*model.URL, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		length := shortcode.DefaultLength
		if attempt == maxCodeAttempts {
			length++
		}

		code, err := s.generator.Generate(length)
		if err != nil {
			return nil, err
		}

		taken, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			s.logger.Debug("Short code collision", zap.String("short_code", code), zap.Int("attempt", attempt))
			continue
		}

		created, err := s.persist(ctx, userID, input, code)
		if err != nil {
			if errors.Is(err, repository.ErrCodeExists) {
				s.logger.Debug("Short code collision at insert", zap.String("short_code", code), zap.Int("attempt", attempt))
				continue
			}
			return nil, err
		}

		metrics.CodeAllocations.WithLabelValues("random").Inc()
		metrics.CodeAllocationAttempts.Observe(float64(attempt))
		return created, nil
	}

	s.logger.Error("Short code space exhausted", zap.Int("attempts", maxCodeAttempts))
	metrics.CodeAllocations.WithLabelValues("exhausted").Inc()
	return nil, ErrCodeSpaceExhausted
}

func (s *URLService) persist(ctx context.Context, userID string, input CreateURLInput, code string) (*model.URL, error) {
	u := model.NewURL(input.OriginalURL, code, userID, input.Title)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("URL created", zap.String("short_code", code), zap.String("user_id", userID))
	return u, nil
}

// GetByCode returns the URL for code. A deactivated mapping is Gone,
// not NotFound: callers must be able to tell revoked from never
// existed.
func (s *URLService) GetByCode(ctx context.Context, code string) (*model.URL, error) {
	u, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	if !u.IsActive {
		return nil, ErrURLGone
	}

	return u, nil
}

// ListByUser returns one page of a user's URLs, newest first, plus the
// total count across all pages under the same filter.
func (s *URLService) ListByUser(ctx context.Context, userID string, page, pageSize int, filter *repository.ListFilter) ([]model.URL, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	urls, err := s.repo.ListByUser(ctx, userID, filter, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountByUser(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}

	return urls, total, nil
}

// Update applies a partial update to the URL behind code, owner only.
func (s *URLService) Update(ctx context.Context, code, userID string, input UpdateURLInput) (*model.URL, error) {
	u, err := s.getOwned(ctx, code, userID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		u.Title = input.Title
	}
	if input.IsActive != nil {
		u.IsActive = *input.IsActive
	}
	u.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	return u, nil
}

// Delete hard-deletes the URL behind code, owner only.
func (s *URLService) Delete(ctx context.Context, code, userID string) error {
	u, err := s.getOwned(ctx, code, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, u); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return ErrURLNotFound
		}
		return err
	}

	s.logger.Info("URL deleted", zap.String("short_code", code), zap.String("user_id", userID))
	return nil
}

// RecordView resolves code for a redirect and counts the click. The
// increment happens in the store as a single statement, so concurrent
// views of the same code never lose updates.
func (s *URLService) RecordView(ctx context.Context, code string) (*model.URL, error) {
	u, err := s.repo.ResolveActive(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			metrics.URLResolutions.WithLabelValues("missing").Inc()
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	if !u.IsActive {
		metrics.URLResolutions.WithLabelValues("gone").Inc()
		return nil, ErrURLGone
	}

	viewed, err := s.repo.IncrementClicks(ctx, u.ID)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			// Deleted between resolution and increment.
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	metrics.URLResolutions.WithLabelValues("ok").Inc()
	return viewed, nil
}

func (s *URLService) getOwned(ctx context.Context, code, userID string) (*model.URL, error) {
	u, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	if u.UserID != userID {
		return nil, ErrForbidden
	}

	return u, nil
}

func validatePreferredCode(code string) error {
	if _, reserved := reservedCodes[strings.ToLower(code)]; reserved {
		return ErrReservedCode
	}
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

func isValidURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
