package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/repository"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/validation"
)

// APIBookHandler is the JSON view of the same owner-scoped repository. Routes
// must sit behind principal.RequireAPI.
type APIBookHandler struct {
	repo   repository.BookRepository
	logger *slog.Logger
}

func NewAPIBookHandler(repo repository.BookRepository, logger *slog.Logger) *APIBookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIBookHandler{repo: repo, logger: logger}
}

func (h *APIBookHandler) RegisterRoutes(r *gin.RouterGroup) {
	books := r.Group("/books")
	{
		books.GET("", h.ListBooks)
		books.GET("/:id", h.GetBookByID)
		books.PATCH("/:id", h.UpdateBook)
		books.DELETE("/:id", h.DeleteBook)
		books.POST("", h.CreateBook)
	}
}

// CreateBook godoc
// @Summary      Create a book
// @Description  Create a book owned by the signed-in user
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string                     true  "Value of the bookshelf_csrf cookie"
// @Param        payload       body      CreateBookRequest          true  "Book to create"
// @Success      201           {object}  BookResponse
// @Failure      400           {object}  validation.ErrorResponse   "Validation error"
// @Failure      401           {object}  validation.ErrorResponse   "Not signed in"
// @Failure      500           {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books [post]
func (h *APIBookHandler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if !validation.BindAndValidateJSON(c, &req) {
		return
	}

	book := model.Book{
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		ISBN:            trimmed(req.ISBN),
		PublicationYear: req.PublicationYear,
		Publisher:       trimmed(req.Publisher),
	}

	ctx := c.Request.Context()
	scope := bridge.ScopeFrom(c)

	if !h.repo.Create(ctx, scope, &book) {
		writeError(c, http.StatusInternalServerError,
			"BOOK_CREATE_FAILED",
			"failed to create book",
		)
		return
	}

	c.JSON(http.StatusCreated, toBookResponse(book))
}

// ListBooks godoc
// @Summary      List books
// @Description  List every book owned by the signed-in user
// @Tags         books
// @Produce      json
// @Success      200  {object}  ListBooksResponse
// @Failure      401  {object}  validation.ErrorResponse   "Not signed in"
// @Router       /books [get]
func (h *APIBookHandler) ListBooks(c *gin.Context) {
	books := h.repo.List(c.Request.Context(), bridge.ScopeFrom(c))
	c.JSON(http.StatusOK, toListBooksResponse(books))
}

// GetBookByID godoc
// @Summary      Get a book by ID
// @Tags         books
// @Produce      json
// @Param        id   path      int  true  "Book ID"
// @Success      200  {object}  BookResponse
// @Failure      400  {object}  validation.ErrorResponse   "Invalid ID"
// @Failure      401  {object}  validation.ErrorResponse   "Not signed in"
// @Failure      404  {object}  validation.ErrorResponse   "Book not found"
// @Router       /books/{id} [get]
func (h *APIBookHandler) GetBookByID(c *gin.Context) {
	book, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toBookResponse(*book))
}

// UpdateBook godoc
// @Summary      Update a book
// @Description  Partially update a book. The cover image is left as is.
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        X-CSRF-Token  header    string              true  "Value of the bookshelf_csrf cookie"
// @Param        id            path      int                 true  "Book ID"
// @Param        payload       body      UpdateBookRequest   true  "Fields to update"
// @Success      200           {object}  BookResponse
// @Failure      400           {object}  validation.ErrorResponse   "Invalid ID or payload"
// @Failure      401           {object}  validation.ErrorResponse   "Not signed in"
// @Failure      404           {object}  validation.ErrorResponse   "Book not found"
// @Failure      500           {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books/{id} [patch]
func (h *APIBookHandler) UpdateBook(c *gin.Context) {
	book, ok := h.find(c)
	if !ok {
		return
	}

	var req UpdateBookRequest
	if !validation.BindAndValidateJSON(c, &req) {
		return
	}

	if req.empty() {
		writeError(c, http.StatusBadRequest,
			"NO_FIELDS_TO_UPDATE",
			"at least one field must be provided to update",
		)
		return
	}

	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		book.Author = strings.TrimSpace(*req.Author)
	}
	if req.ISBN != nil {
		book.ISBN = trimmed(req.ISBN)
	}
	if req.PublicationYear != nil {
		book.PublicationYear = req.PublicationYear
	}
	if req.Publisher != nil {
		book.Publisher = trimmed(req.Publisher)
	}

	if err := validation.ValidateBook(book); err != nil {
		writeValidationError(c, validation.FromBindingError(err))
		return
	}

	ctx := c.Request.Context()
	scope := bridge.ScopeFrom(c)

	if !h.repo.Update(ctx, scope, book) {
		writeError(c, http.StatusInternalServerError,
			"BOOK_UPDATE_FAILED",
			"failed to update book",
		)
		return
	}

	updated := h.repo.GetByID(ctx, scope, book.ID)
	if updated == nil {
		writeError(c, http.StatusInternalServerError,
			"BOOK_FETCH_FAILED",
			"failed to fetch updated book",
		)
		return
	}

	c.JSON(http.StatusOK, toBookResponse(*updated))
}

// DeleteBook godoc
// @Summary      Delete a book
// @Description  Delete a book and its cover image
// @Tags         books
// @Produce      json
// @Param        X-CSRF-Token  header    string  true  "Value of the bookshelf_csrf cookie"
// @Param        id            path      int     true  "Book ID"
// @Success      204           {string}  string  "No content"
// @Failure      400           {object}  validation.ErrorResponse   "Invalid ID"
// @Failure      401           {object}  validation.ErrorResponse   "Not signed in"
// @Failure      404           {object}  validation.ErrorResponse   "Book not found"
// @Failure      500           {object}  validation.ErrorResponse   "Internal server error"
// @Router       /books/{id} [delete]
func (h *APIBookHandler) DeleteBook(c *gin.Context) {
	book, ok := h.find(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	scope := bridge.ScopeFrom(c)

	if book.HasImage() {
		h.repo.DeleteImage(ctx, scope, *book.ImageURL)
	}

	if !h.repo.Delete(ctx, scope, book.ID) {
		writeError(c, http.StatusInternalServerError,
			"BOOK_DELETE_FAILED",
			"failed to delete book",
		)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *APIBookHandler) find(c *gin.Context) (*model.Book, bool) {
	id, ok := parseID(c)
	if !ok {
		writeError(c, http.StatusBadRequest,
			"INVALID_BOOK_ID",
			"invalid book id",
		)
		return nil, false
	}

	book := h.repo.GetByID(c.Request.Context(), bridge.ScopeFrom(c), id)
	if book == nil {
		writeError(c, http.StatusNotFound,
			"BOOK_NOT_FOUND",
			"book not found",
		)
		return nil, false
	}
	return book, true
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(strings.TrimSpace(*s))
}
