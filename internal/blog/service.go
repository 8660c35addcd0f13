package blog

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/querycache"
)

// Reader runs blog queries, possibly from cache, and drops cached results
// for a tag.
type Reader interface {
	querycache.Executor[Blog]
	Invalidate(ctx context.Context, tag string) error
}

// UserTag is the cache tag covering every query about one user's blogs.
func UserTag(userID string) string {
	return "user:" + userID
}

// Service is the blog read and write path. Reads go through the cache under
// the owner's tag; every write invalidates that tag.
type Service struct {
	db     bun.IDB
	reader Reader
	clock  cache.Clock
	newID  func() string
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for CreatedAt.
func WithClock(clock cache.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds a Service writing to db and reading through reader.
func NewService(db bun.IDB, reader Reader, opts ...Option) *Service {
	s := &Service{
		db:     db,
		reader: reader,
		clock:  cache.SystemClock,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With("component", "blog")
	return s
}

// EnsureSchema creates the blogs table when it is missing.
func (s *Service) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*Blog)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "create blogs table")
	}
	return nil
}

// ListForUser returns the user's blogs oldest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Blog, error) {
	q := querycache.NewQuery(Collection).
		Where("user_id", userID).
		OrderBy("created_at").
		Cache(UserTag(userID))

	res, err := s.reader.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Records(), nil
}

// Get returns one of the user's blogs, or nil when there is none with that id.
func (s *Service) Get(ctx context.Context, userID, blogID string) (*Blog, error) {
	q := querycache.NewQuery(Collection).
		Where("user_id", userID).
		Where("_id", blogID).
		First().
		Cache(UserTag(userID))

	res, err := s.reader.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	b, ok := res.Record()
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// Create validates input, stores a new blog for the user and drops the
// user's cached queries.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (Blog, error) {
	if err := input.Validate(); err != nil {
		return Blog{}, err
	}
	if userID == "" {
		return Blog{}, goerrors.New("user id is required", goerrors.CategoryBadInput)
	}

	b := Blog{
		ID:        s.newID(),
		UserID:    userID,
		Title:     input.Title,
		Content:   input.Content,
		CreatedAt: s.clock.Now().UTC(),
	}
	b.normalize()

	if _, err := s.db.NewInsert().Model(&b).Exec(ctx); err != nil {
		return Blog{}, goerrors.Wrap(err, goerrors.CategoryInternal, "insert blog")
	}

	s.invalidate(ctx, userID)
	return b, nil
}

// Delete removes one of the user's blogs and drops the user's cached queries.
func (s *Service) Delete(ctx context.Context, userID, blogID string) error {
	res, err := s.db.NewDelete().
		Model((*Blog)(nil)).
		Where("? = ?", bun.Ident("user_id"), userID).
		Where("? = ?", bun.Ident("_id"), blogID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "delete blog")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerrors.New("blog not found", goerrors.CategoryNotFound).
			WithMetadata(map[string]any{"user_id": userID, "blog_id": blogID})
	}

	s.invalidate(ctx, userID)
	return nil
}

// invalidate logs failures. Stale entries still expire with their TTL.
func (s *Service) invalidate(ctx context.Context, userID string) {
	tag := UserTag(userID)
	if err := s.reader.Invalidate(ctx, tag); err != nil {
		s.logger.WarnContext(ctx, "invalidate blog cache", "tag", tag, "error", err)
	}
}

// Validate checks that title and content are present.
func (in CreateInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Content, validation.Required),
	)
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "invalid blog")
}
