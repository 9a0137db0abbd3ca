package handler

import (
	"time"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
)

type CreateBookRequest struct {
	Title           string  `json:"title" binding:"required,notblank,max=255"`
	Author          string  `json:"author" binding:"required,notblank,max=255"`
	ISBN            *string `json:"isbn" binding:"omitnil,max=13" example:"9780132350884"`
	PublicationYear *int    `json:"publication_year" binding:"omitnil,min=1000,max=9999" example:"2008"`
	Publisher       *string `json:"publisher" binding:"omitnil,max=255"`
}

// UpdateBookRequest is a partial update. An empty string clears an optional
// field.
type UpdateBookRequest struct {
	Title           *string `json:"title" binding:"omitnil,notblank,max=255"`
	Author          *string `json:"author" binding:"omitnil,notblank,max=255"`
	ISBN            *string `json:"isbn" binding:"omitnil,max=13" example:"9780132350884"`
	PublicationYear *int    `json:"publication_year" binding:"omitnil,min=1000,max=9999" example:"2008"`
	Publisher       *string `json:"publisher" binding:"omitnil,max=255"`
}

func (r UpdateBookRequest) empty() bool {
	return r.Title == nil && r.Author == nil && r.ISBN == nil &&
		r.PublicationYear == nil && r.Publisher == nil
}

type Book struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            *string    `json:"isbn,omitempty"`
	PublicationYear *int       `json:"publication_year,omitempty"`
	Publisher       *string    `json:"publisher,omitempty"`
	ImageURL        *string    `json:"image_url,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty" swaggertype:"string" example:"2025-11-24T10:00:00Z"`
}

type BookResponse struct {
	Data Book `json:"data"`
}

type ListBooksResponse struct {
	Data  []Book `json:"data"`
	Total int    `json:"total"`
}

func toBook(b model.Book) Book {
	return Book{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		PublicationYear: b.PublicationYear,
		Publisher:       b.Publisher,
		ImageURL:        b.ImageURL,
		CreatedAt:       b.CreatedAt,
	}
}

func toBookResponse(b model.Book) BookResponse {
	return BookResponse{Data: toBook(b)}
}

func toListBooksResponse(books []model.Book) ListBooksResponse {
	data := make([]Book, 0, len(books))
	for _, b := range books {
		data = append(data, toBook(b))
	}
	return ListBooksResponse{Data: data, Total: len(data)}
}
