package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/validation"
)

// BookRepository is owner-scoped CRUD over the caller's books. Every method
// fails closed: without a resolvable user it returns empty, nil or false.
type BookRepository interface {
	List(ctx context.Context, scope *bridge.Scope) []model.Book
	GetByID(ctx context.Context, scope *bridge.Scope, id int64) *model.Book
	Create(ctx context.Context, scope *bridge.Scope, book *model.Book) bool
	Update(ctx context.Context, scope *bridge.Scope, book *model.Book) bool
	Delete(ctx context.Context, scope *bridge.Scope, id int64) bool
	UploadImage(ctx context.Context, scope *bridge.Scope, r io.Reader, filename, contentType string) (string, bool)
	DeleteImage(ctx context.Context, scope *bridge.Scope, url string) bool
}

type Restorer interface {
	RestoreIfNeeded(ctx context.Context, scope *bridge.Scope)
}

type Identity interface {
	CurrentUserID(scope *bridge.Scope) string
}

type BackendBookRepository struct {
	client   *backend.Client
	bridge   Restorer
	identity Identity
	logger   *slog.Logger
	now      func() time.Time
}

func NewBackendBookRepository(client *backend.Client, br Restorer, identity Identity, logger *slog.Logger) *BackendBookRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackendBookRepository{
		client:   client,
		bridge:   br,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}
}

// owner restores the backend session and resolves the caller.
func (r *BackendBookRepository) owner(ctx context.Context, scope *bridge.Scope) (string, bool) {
	if scope == nil {
		return "", false
	}
	r.bridge.RestoreIfNeeded(ctx, scope)
	id := r.identity.CurrentUserID(scope)
	return id, id != ""
}

func (r *BackendBookRepository) ownedBooks(ctx context.Context, scope *bridge.Scope, ownerID string) *backend.Query[model.Book] {
	return backend.From[model.Book](ctx, r.client, scope.Backend).Eq(model.ColumnOwnerID, ownerID)
}

func (r *BackendBookRepository) ownedBook(ctx context.Context, scope *bridge.Scope, ownerID string, id int64) *backend.Query[model.Book] {
	return r.ownedBooks(ctx, scope, ownerID).Eq(model.ColumnID, id)
}

func (r *BackendBookRepository) List(ctx context.Context, scope *bridge.Scope) []model.Book {
	ownerID, ok := r.owner(ctx, scope)
	if !ok {
		return []model.Book{}
	}

	books, err := r.ownedBooks(ctx, scope, ownerID).Get()
	if err != nil {
		r.logger.Error("failed to list books", "user_id", ownerID, "error", err)
		return []model.Book{}
	}
	return books
}

func (r *BackendBookRepository) GetByID(ctx context.Context, scope *bridge.Scope, id int64) *model.Book {
	ownerID, ok := r.owner(ctx, scope)
	if !ok {
		return nil
	}

	book, err := r.ownedBook(ctx, scope, ownerID, id).Single()
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			r.logger.Error("failed to get book", "id", id, "user_id", ownerID, "error", err)
		}
		return nil
	}
	return book
}

// Create inserts book for the caller. Owner, creation time and id always come
// from here, never from the caller.
func (r *BackendBookRepository) Create(ctx context.Context, scope *bridge.Scope, book *model.Book) bool {
	ownerID, ok := r.owner(ctx, scope)
	if !ok || book == nil {
		return false
	}

	book.ID = 0
	book.OwnerID = ownerID
	now := r.now().UTC()
	book.CreatedAt = &now

	if err := validation.ValidateBook(book); err != nil {
		r.logger.Warn("refusing to create invalid book", "user_id", ownerID, "error", err)
		return false
	}

	if err := backend.From[model.Book](ctx, r.client, scope.Backend).Insert(book); err != nil {
		r.logger.Error("failed to create book", "user_id", ownerID, "error", err)
		return false
	}
	return true
}

// Update rewrites the mutable fields of an owned book. Creation time and
// owner are never part of the update set.
func (r *BackendBookRepository) Update(ctx context.Context, scope *bridge.Scope, book *model.Book) bool {
	ownerID, ok := r.owner(ctx, scope)
	if !ok || book == nil {
		return false
	}

	book.OwnerID = ownerID

	if err := validation.ValidateBook(book); err != nil {
		r.logger.Warn("refusing to apply invalid update", "id", book.ID, "user_id", ownerID, "error", err)
		return false
	}

	rows, err := r.ownedBook(ctx, scope, ownerID, book.ID).Update(map[string]any{
		model.ColumnTitle:           book.Title,
		model.ColumnAuthor:          book.Author,
		model.ColumnISBN:            book.ISBN,
		model.ColumnPublicationYear: book.PublicationYear,
		model.ColumnPublisher:       book.Publisher,
		model.ColumnImageURL:        book.ImageURL,
	})
	if err != nil {
		r.logger.Error("failed to update book", "id", book.ID, "user_id", ownerID, "error", err)
		return false
	}
	return rows > 0
}

// Delete removes an owned book. It reports true whenever the backend call
// succeeds, including when nothing matched.
func (r *BackendBookRepository) Delete(ctx context.Context, scope *bridge.Scope, id int64) bool {
	ownerID, ok := r.owner(ctx, scope)
	if !ok {
		return false
	}

	if _, err := r.ownedBook(ctx, scope, ownerID, id).Delete(); err != nil {
		r.logger.Error("failed to delete book", "id", id, "user_id", ownerID, "error", err)
		return false
	}
	return true
}

func (r *BackendBookRepository) UploadImage(ctx context.Context, scope *bridge.Scope, rd io.Reader, filename, contentType string) (string, bool) {
	ownerID, ok := r.owner(ctx, scope)
	if !ok {
		return "", false
	}

	url, err := r.client.Storage.Upload(ctx, scope.Backend, rd, filename, contentType)
	if err != nil {
		if errors.Is(err, backend.ErrRejectedUpload) {
			r.logger.Warn("image upload rejected", "user_id", ownerID, "filename", filename, "error", err)
		} else {
			r.logger.Error("failed to upload image", "user_id", ownerID, "filename", filename, "error", err)
		}
		return "", false
	}
	return url, true
}

// DeleteImage is best-effort. Failures are logged and reported as false.
func (r *BackendBookRepository) DeleteImage(ctx context.Context, scope *bridge.Scope, url string) bool {
	if url == "" {
		return false
	}
	ownerID, ok := r.owner(ctx, scope)
	if !ok {
		return false
	}

	if err := r.client.Storage.Remove(ctx, scope.Backend, url); err != nil {
		r.logger.Warn("failed to delete image", "user_id", ownerID, "url", url, "error", err)
		return false
	}
	return true
}
