package handler

import (
	"strconv"
	"strings"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/validation"
)

type LoginForm struct {
	Email     string `form:"email" binding:"required,email,max=255"`
	Password  string `form:"password" binding:"required,max=100"`
	ReturnURL string `form:"returnUrl"`
}

type RegisterForm struct {
	Email           string `form:"email" binding:"required,email,max=255"`
	Password        string `form:"password" binding:"required,min=6,max=100"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

// BookForm is the raw create/edit form. Rules live on model.Book; this only
// carries strings so a bad year can be re-rendered as typed.
type BookForm struct {
	Title           string `form:"title"`
	Author          string `form:"author"`
	ISBN            string `form:"isbn"`
	PublicationYear string `form:"publication_year"`
	Publisher       string `form:"publisher"`
	RemoveImage     bool   `form:"remove_image"`
}

func bookFormFrom(b *model.Book) BookForm {
	f := BookForm{
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      model.StringValue(b.ISBN),
		Publisher: model.StringValue(b.Publisher),
	}
	if b.PublicationYear != nil {
		f.PublicationYear = strconv.Itoa(*b.PublicationYear)
	}
	return f
}

// toBook converts and validates the form.
func (f BookForm) toBook() (model.Book, validation.Errors) {
	book := model.Book{
		Title:     strings.TrimSpace(f.Title),
		Author:    strings.TrimSpace(f.Author),
		ISBN:      model.StringPtr(strings.TrimSpace(f.ISBN)),
		Publisher: model.StringPtr(strings.TrimSpace(f.Publisher)),
	}

	var errs validation.Errors

	if y := strings.TrimSpace(f.PublicationYear); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			errs = append(errs, validation.FieldError{
				Field:   "publication_year",
				Rule:    "number",
				Message: "publication_year must be a whole number",
			})
		} else {
			book.PublicationYear = &year
		}
	}

	if err := validation.ValidateBook(&book); err != nil {
		errs = append(validation.FromBindingError(err), errs...)
	}

	return book, errs
}
