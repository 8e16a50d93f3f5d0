package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/short-link/internal/entity"
)

const DefaultMaxRetries = 5

type linkRepository interface {
	Save(ctx context.Context, code, originalURL string) (*entity.ShortLink, error)
	RetrieveByCode(ctx context.Context, code string) (*entity.ShortLink, error)
	RetrieveAndUpdateStats(ctx context.Context, code string) (*entity.ShortLink, error)
	Remove(ctx context.Context, code string) (*entity.ShortLink, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

type LinkUseCase struct {
	repo       linkRepository
	gen        codeGenerator
	maxRetries int
	validate   *validator.Validate
}

type Option func(*LinkUseCase)

// WithMaxRetries sets how many fresh codes Shorten tries before giving up.
func WithMaxRetries(n int) Option {
	return func(uc *LinkUseCase) {
		if n > 0 {
			uc.maxRetries = n
		}
	}
}

func NewLinkUseCase(repo linkRepository, gen codeGenerator, opts ...Option) *LinkUseCase {
	uc := &LinkUseCase{
		repo:       repo,
		gen:        gen,
		maxRetries: DefaultMaxRetries,
		validate:   validator.New(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Shorten stores originalURL under a freshly generated code.
func (uc *LinkUseCase) Shorten(ctx context.Context, originalURL string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.Shorten"

	if err := uc.validateURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for range uc.maxRetries {
		code, err := uc.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate code: %w", op, err)
		}

		link, err := uc.repo.Save(ctx, code, originalURL)
		if err != nil {
			if errors.Is(err, entity.ErrCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to save link: %w", op, err)
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrCodeGenerationExhausted)
}

// Expand resolves code and counts the visit.
func (uc *LinkUseCase) Expand(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.Expand"

	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link, err := uc.repo.RetrieveAndUpdateStats(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to expand code: %w", op, err)
	}

	return link, nil
}

// Stats returns the link without counting a visit.
func (uc *LinkUseCase) Stats(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.Stats"

	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link, err := uc.repo.RetrieveByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get stats: %w", op, err)
	}

	return link, nil
}

func (uc *LinkUseCase) Delete(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "usecase.LinkUseCase.Delete"

	if code == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link, err := uc.repo.Remove(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	return link, nil
}

// validateURL accepts absolute URLs that carry both a scheme and a host.
func (uc *LinkUseCase) validateURL(raw string) error {
	if err := uc.validate.Var(raw, "required,url"); err != nil {
		return fmt.Errorf("%w: %q", entity.ErrInvalidURL, raw)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", entity.ErrInvalidURL, raw)
	}

	return nil
}
