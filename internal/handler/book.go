package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/repository"
)

const (
	msgSaveFailed    = "The book could not be saved. Please try again."
	msgDeleteFailed  = "The book could not be deleted. Please try again."
	msgImageRejected = "The image could not be uploaded. Use a non-empty JPEG, PNG, GIF or WebP file within the size limit."
)

// BookHandler serves the HTML pages under /books. Routes must sit behind
// principal.RequireHTML.
type BookHandler struct {
	repo   repository.BookRepository
	logger *slog.Logger
}

func NewBookHandler(repo repository.BookRepository, logger *slog.Logger) *BookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{repo: repo, logger: logger}
}

func (h *BookHandler) RegisterRoutes(r *gin.RouterGroup) {
	books := r.Group("/books")
	{
		books.GET("", h.Index)
		books.GET("/create", h.CreateForm)
		books.POST("/create", h.Create)
		books.GET("/:id", h.Details)
		books.GET("/:id/edit", h.EditForm)
		books.POST("/:id/edit", h.Edit)
		books.GET("/:id/delete", h.DeleteConfirm)
		books.POST("/:id/delete", h.Delete)
	}
}

func (h *BookHandler) Index(c *gin.Context) {
	books := h.repo.List(c.Request.Context(), bridge.ScopeFrom(c))
	render(c, http.StatusOK, "books_index.html", gin.H{
		"Title": "My books",
		"Books": books,
	})
}

// find loads the :id book or renders 404.
func (h *BookHandler) find(c *gin.Context) (*model.Book, bool) {
	id, ok := parseID(c)
	if !ok {
		renderNotFound(c)
		return nil, false
	}

	book := h.repo.GetByID(c.Request.Context(), bridge.ScopeFrom(c), id)
	if book == nil {
		renderNotFound(c)
		return nil, false
	}
	return book, true
}

func (h *BookHandler) Details(c *gin.Context) {
	book, ok := h.find(c)
	if !ok {
		return
	}
	render(c, http.StatusOK, "books_details.html", gin.H{
		"Title": book.Title,
		"Book":  book,
	})
}

func (h *BookHandler) CreateForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, BookForm{}, nil, "", nil)
}

// Create attaches an image only after it was stored, and removes the stored
// object again when the insert fails.
func (h *BookHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	scope := bridge.ScopeFrom(c)

	var form BookForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderForm(c, http.StatusUnprocessableEntity, form, nil, "The form could not be read.", nil)
		return
	}

	book, errs := form.toBook()
	if len(errs) > 0 {
		h.renderForm(c, http.StatusUnprocessableEntity, form, errs.Map(), "", nil)
		return
	}

	url, uploaded, ok := h.uploadImage(c, scope)
	if !ok {
		h.renderForm(c, http.StatusUnprocessableEntity, form, map[string]string{"image": msgImageRejected}, "", nil)
		return
	}
	if uploaded {
		book.ImageURL = &url
	}

	if !h.repo.Create(ctx, scope, &book) {
		if uploaded {
			h.repo.DeleteImage(ctx, scope, url)
		}
		h.renderForm(c, http.StatusInternalServerError, form, nil, msgSaveFailed, nil)
		return
	}

	redirectWithFlash(c, "/books", fmt.Sprintf("%q was added.", book.Title))
}

func (h *BookHandler) EditForm(c *gin.Context) {
	book, ok := h.find(c)
	if !ok {
		return
	}
	h.renderForm(c, http.StatusOK, bookFormFrom(book), nil, "", book)
}

// Edit applies the image policy: remove_image clears and deletes the current
// image; a new upload replaces it, deleting the old object first; otherwise
// the current image stays.
func (h *BookHandler) Edit(c *gin.Context) {
	current, ok := h.find(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	scope := bridge.ScopeFrom(c)

	var form BookForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderForm(c, http.StatusUnprocessableEntity, form, nil, "The form could not be read.", current)
		return
	}

	book, errs := form.toBook()
	if len(errs) > 0 {
		h.renderForm(c, http.StatusUnprocessableEntity, form, errs.Map(), "", current)
		return
	}
	book.ID = current.ID
	book.ImageURL = current.ImageURL

	var newURL string
	switch {
	case form.RemoveImage:
		if current.HasImage() {
			h.repo.DeleteImage(ctx, scope, *current.ImageURL)
		}
		book.ImageURL = nil
	default:
		url, uploaded, ok := h.uploadImage(c, scope)
		if !ok {
			h.renderForm(c, http.StatusUnprocessableEntity, form, map[string]string{"image": msgImageRejected}, "", current)
			return
		}
		if uploaded {
			if current.HasImage() {
				h.repo.DeleteImage(ctx, scope, *current.ImageURL)
			}
			newURL = url
			book.ImageURL = &url
		}
	}

	if !h.repo.Update(ctx, scope, &book) {
		if newURL != "" {
			h.repo.DeleteImage(ctx, scope, newURL)
		}
		h.renderForm(c, http.StatusInternalServerError, form, nil, msgSaveFailed, current)
		return
	}

	redirectWithFlash(c, fmt.Sprintf("/books/%d", book.ID), fmt.Sprintf("%q was updated.", book.Title))
}

func (h *BookHandler) DeleteConfirm(c *gin.Context) {
	book, ok := h.find(c)
	if !ok {
		return
	}
	render(c, http.StatusOK, "books_delete.html", gin.H{
		"Title": "Delete " + book.Title,
		"Book":  book,
	})
}

// Delete removes the image first. A failed image removal does not stop the
// book from being deleted.
func (h *BookHandler) Delete(c *gin.Context) {
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
		render(c, http.StatusInternalServerError, "books_delete.html", gin.H{
			"Title": "Delete " + book.Title,
			"Book":  book,
			"Error": msgDeleteFailed,
		})
		return
	}

	redirectWithFlash(c, "/books", fmt.Sprintf("%q was deleted.", book.Title))
}

// uploadImage stores the "image" form file if one was sent. uploaded reports
// whether a file was present; ok is false when it was present but rejected.
func (h *BookHandler) uploadImage(c *gin.Context, scope *bridge.Scope) (url string, uploaded, ok bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", false, true
		}
		h.logger.Warn("failed to read uploaded image", "error", err)
		return "", false, false
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Warn("failed to open uploaded image", "filename", fh.Filename, "error", err)
		return "", false, false
	}
	defer f.Close()

	url, ok = h.repo.UploadImage(c.Request.Context(), scope, f, fh.Filename, fh.Header.Get("Content-Type"))
	if !ok {
		return "", false, false
	}
	return url, true, true
}

func (h *BookHandler) renderForm(c *gin.Context, status int, form BookForm, errs map[string]string, errMsg string, editing *model.Book) {
	data := gin.H{
		"Title":  "Add a book",
		"Form":   form,
		"Errors": errs,
		"Action": "/books/create",
	}
	if errMsg != "" {
		data["Error"] = errMsg
	}
	if editing != nil {
		data["Title"] = "Edit " + editing.Title
		data["IsEdit"] = true
		data["Action"] = fmt.Sprintf("/books/%d/edit", editing.ID)
		if editing.HasImage() {
			data["CurrentImage"] = *editing.ImageURL
		}
	}
	render(c, status, "books_form.html", data)
}
