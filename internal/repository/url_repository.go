package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"shortener/internal/model"
)

const (
	cacheTimeout = 24 * time.Hour
	dbTimeout    = 5 * time.Second

	urlColumns = "id, original_url, short_code, user_id, title, clicks, is_active, created_at, updated_at"
)

// ListFilter narrows ListByUser/CountByUser results. Nil fields are
// ignored. Filters apply before pagination and before the count.
type ListFilter struct {
	TitleContains *string
	IsActive      *bool
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// URLRepository defines the persistence operations for shortened URLs.
type URLRepository interface {
	Create(ctx context.Context, url *model.URL) error
	GetByShortCode(ctx context.Context, code string) (*model.URL, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListByUser(ctx context.Context, userID string, filter *ListFilter, offset, limit int) ([]model.URL, error)
	CountByUser(ctx context.Context, userID string, filter *ListFilter) (int64, error)
	Update(ctx context.Context, url *model.URL) error
	Delete(ctx context.Context, url *model.URL) error
	IncrementClicks(ctx context.Context, id string) (*model.URL, error)
	ResolveActive(ctx context.Context, code string) (*model.URL, error)
}

// PostgresURLRepository implements URLRepository using PostgreSQL with
// a Redis read-through cache on the resolution path.
type PostgresURLRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewPostgresURLRepository(db *pgxpool.Pool, redisClient *redis.Client) *PostgresURLRepository {
	return &PostgresURLRepository{
		db:          db,
		redisClient: redisClient,
		logger:      zap.L().With(zap.String("component", "PostgresURLRepository")),
	}
}

// Create inserts a new URL mapping. The unique index on short_code is
// the final arbiter of code uniqueness: a violation maps to
// ErrCodeExists so the service can treat it as a collision and retry.
func (r *PostgresURLRepository) Create(ctx context.Context, url *model.URL) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `
		INSERT INTO urls (id, original_url, short_code, user_id, title, clicks, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		url.ID, url.OriginalURL, url.ShortCode, url.UserID, url.Title,
		url.Clicks, url.IsActive, url.CreatedAt, url.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		r.logger.Error("Failed to insert URL", zap.Error(err), zap.String("short_code", url.ShortCode))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return nil
}

// GetByShortCode retrieves a URL by its short code straight from the
// database. Callers that can tolerate a stale click count should use
// ResolveActive instead.
func (r *PostgresURLRepository) GetByShortCode(ctx context.Context, code string) (*model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return r.scanOne(r.db.QueryRow(ctx, "SELECT "+urlColumns+" FROM urls WHERE short_code = $1", code))
}

// CodeExists checks if a given short code is already taken.
func (r *PostgresURLRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)", code).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check code existence", zap.Error(err), zap.String("short_code", code))
		return false, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return exists, nil
}

// ListByUser returns one page of a user's URLs, newest first.
func (r *PostgresURLRepository) ListByUser(ctx context.Context, userID string, filter *ListFilter, offset, limit int) ([]model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	where, args := buildFilter(userID, filter)
	query := fmt.Sprintf(
		"SELECT %s FROM urls WHERE %s ORDER BY created_at DESC OFFSET $%d LIMIT $%d",
		urlColumns, where, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list URLs", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	urls := []model.URL{}
	for rows.Next() {
		var u model.URL
		if err := rows.Scan(&u.ID, &u.OriginalURL, &u.ShortCode, &u.UserID, &u.Title,
			&u.Clicks, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return urls, nil
}

// CountByUser counts a user's URLs under the same filter ListByUser
// applies.
func (r *PostgresURLRepository) CountByUser(ctx context.Context, userID string, filter *ListFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	where, args := buildFilter(userID, filter)

	var total int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM urls WHERE "+where, args...).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to count URLs", zap.Error(err), zap.String("user_id", userID))
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return total, nil
}

// Update persists title/is_active changes and invalidates the
// resolution cache entry for the code.
func (r *PostgresURLRepository) Update(ctx context.Context, url *model.URL) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `UPDATE urls SET title = $1, is_active = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.db.Exec(ctx, query, url.Title, url.IsActive, url.UpdatedAt, url.ID)
	if err != nil {
		r.logger.Error("Failed to update URL", zap.Error(err), zap.String("id", url.ID))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	r.invalidate(ctx, url.ShortCode)
	return nil
}

// Delete hard-deletes the row and invalidates the cache entry.
func (r *PostgresURLRepository) Delete(ctx context.Context, url *model.URL) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, "DELETE FROM urls WHERE id = $1", url.ID)
	if err != nil {
		r.logger.Error("Failed to delete URL", zap.Error(err), zap.String("id", url.ID))
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	r.invalidate(ctx, url.ShortCode)
	return nil
}

// IncrementClicks bumps the click counter as a single statement so
// concurrent views never lose updates, and returns the fresh row.
func (r *PostgresURLRepository) IncrementClicks(ctx context.Context, id string) (*model.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := "UPDATE urls SET clicks = clicks + 1 WHERE id = $1 RETURNING " + urlColumns

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// ResolveActive is the hot-path lookup for redirects: cache first,
// database on miss. Only active rows are cached, and mutations
// invalidate the entry, so a cache hit is always a live mapping.
func (r *PostgresURLRepository) ResolveActive(ctx context.Context, code string) (*model.URL, error) {
	if r.redisClient != nil {
		raw, err := r.redisClient.Get(ctx, cacheKey(code)).Result()
		if err == nil {
			var cached model.URL
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				r.logger.Debug("URL found in cache", zap.String("short_code", code))
				return &cached, nil
			}
			r.invalidate(ctx, code)
		} else if err != redis.Nil {
			r.logger.Warn("Cache error", zap.Error(err), zap.String("short_code", code))
		}
	}

	url, err := r.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if url.IsActive && r.redisClient != nil {
		if raw, err := json.Marshal(url); err == nil {
			if err := r.redisClient.Set(ctx, cacheKey(code), raw, cacheTimeout).Err(); err != nil {
				r.logger.Warn("Failed to cache URL", zap.Error(err), zap.String("short_code", code))
			}
		}
	}

	return url, nil
}

func (r *PostgresURLRepository) scanOne(row pgx.Row) (*model.URL, error) {
	u := &model.URL{}
	err := row.Scan(&u.ID, &u.OriginalURL, &u.ShortCode, &u.UserID, &u.Title,
		&u.Clicks, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		r.logger.Error("Database query error", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return u, nil
}

func (r *PostgresURLRepository) invalidate(ctx context.Context, code string) {
	if r.redisClient == nil {
		return
	}
	if err := r.redisClient.Del(ctx, cacheKey(code)).Err(); err != nil {
		r.logger.Warn("Failed to invalidate cache", zap.Error(err), zap.String("short_code", code))
	}
}

func cacheKey(code string) string {
	return "url:" + code
}

// buildFilter renders the WHERE clause for list/count so both always
// see the same predicate set.
func buildFilter(userID string, filter *ListFilter) (string, []interface{}) {
	clauses := []string{"user_id = $1"}
	args := []interface{}{userID}

	if filter != nil {
		if filter.TitleContains != nil {
			args = append(args, "%"+*filter.TitleContains+"%")
			clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", len(args)))
		}
		if filter.IsActive != nil {
			args = append(args, *filter.IsActive)
			clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
		}
		if filter.CreatedFrom != nil {
			args = append(args, *filter.CreatedFrom)
			clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
		}
		if filter.CreatedTo != nil {
			args = append(args, *filter.CreatedTo)
			clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
		}
	}

	return strings.Join(clauses, " AND "), args
}
