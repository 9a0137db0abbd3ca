package model

import "time"

// Persisted column names of the libros table.
const (
	ColumnID              = "id"
	ColumnTitle           = "titulo"
	ColumnAuthor          = "autor"
	ColumnISBN            = "isbn"
	ColumnPublicationYear = "anio_publicacion"
	ColumnPublisher       = "editorial"
	ColumnCreatedAt       = "fecha_creacion"
	ColumnOwnerID         = "usuario_id"
	ColumnImageURL        = "imagen_url"
)

// Book is one catalog entry. OwnerID and CreatedAt are always assigned by the
// repository, never taken from the caller.
type Book struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title           string     `gorm:"column:titulo;size:255;not null" json:"title" validate:"required,notblank,max=255"`
	Author          string     `gorm:"column:autor;size:255;not null" json:"author" validate:"required,notblank,max=255"`
	ISBN            *string    `gorm:"column:isbn;size:13" json:"isbn,omitempty" validate:"omitnil,max=13"`
	PublicationYear *int       `gorm:"column:anio_publicacion" json:"publication_year,omitempty" validate:"omitnil,min=1000,max=9999"`
	Publisher       *string    `gorm:"column:editorial;size:255" json:"publisher,omitempty" validate:"omitnil,max=255"`
	CreatedAt       *time.Time `gorm:"column:fecha_creacion;autoCreateTime:false" json:"created_at,omitempty"`
	OwnerID         string     `gorm:"column:usuario_id;size:64;not null;index" json:"owner_id"`
	ImageURL        *string    `gorm:"column:imagen_url" json:"image_url,omitempty"`
}

func (Book) TableName() string {
	return "libros"
}

// HasImage reports whether a cover image is attached.
func (b Book) HasImage() bool {
	return b.ImageURL != nil && *b.ImageURL != ""
}

// StringPtr returns nil for an empty string so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
