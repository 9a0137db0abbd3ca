package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/web"
)

type fakeBookRepo struct {
	ListFn        func(ctx context.Context, scope *bridge.Scope) []model.Book
	GetByIDFn     func(ctx context.Context, scope *bridge.Scope, id int64) *model.Book
	CreateFn      func(ctx context.Context, scope *bridge.Scope, b *model.Book) bool
	UpdateFn      func(ctx context.Context, scope *bridge.Scope, b *model.Book) bool
	DeleteFn      func(ctx context.Context, scope *bridge.Scope, id int64) bool
	UploadImageFn func(ctx context.Context, scope *bridge.Scope, r io.Reader, filename, contentType string) (string, bool)
	DeleteImageFn func(ctx context.Context, scope *bridge.Scope, url string) bool

	deletedImages []string
}

func (f *fakeBookRepo) List(ctx context.Context, scope *bridge.Scope) []model.Book {
	if f.ListFn != nil {
		return f.ListFn(ctx, scope)
	}
	return []model.Book{}
}

func (f *fakeBookRepo) GetByID(ctx context.Context, scope *bridge.Scope, id int64) *model.Book {
	if f.GetByIDFn != nil {
		return f.GetByIDFn(ctx, scope, id)
	}
	return nil
}

func (f *fakeBookRepo) Create(ctx context.Context, scope *bridge.Scope, b *model.Book) bool {
	if f.CreateFn != nil {
		return f.CreateFn(ctx, scope, b)
	}
	return true
}

func (f *fakeBookRepo) Update(ctx context.Context, scope *bridge.Scope, b *model.Book) bool {
	if f.UpdateFn != nil {
		return f.UpdateFn(ctx, scope, b)
	}
	return true
}

func (f *fakeBookRepo) Delete(ctx context.Context, scope *bridge.Scope, id int64) bool {
	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, scope, id)
	}
	return true
}

func (f *fakeBookRepo) UploadImage(ctx context.Context, scope *bridge.Scope, r io.Reader, filename, contentType string) (string, bool) {
	if f.UploadImageFn != nil {
		return f.UploadImageFn(ctx, scope, r, filename, contentType)
	}
	return "", false
}

func (f *fakeBookRepo) DeleteImage(ctx context.Context, scope *bridge.Scope, url string) bool {
	f.deletedImages = append(f.deletedImages, url)
	if f.DeleteImageFn != nil {
		return f.DeleteImageFn(ctx, scope, url)
	}
	return true
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	return r
}

func seedBook(id int64, title string) *model.Book {
	return &model.Book{
		ID:      id,
		Title:   title,
		Author:  "Robert C. Martin",
		ISBN:    model.StringPtr("9780132350884"),
		OwnerID: "user-1",
	}
}

func formRequest(method, target string, values url.Values) *http.Request {
	req, _ := http.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type upload struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func multipartRequest(t *testing.T, target string, values url.Values, file *upload) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, vs := range values {
		for _, v := range vs {
			if err := w.WriteField(key, v); err != nil {
				t.Fatalf("failed to write field %q: %v", key, err)
			}
		}
	}

	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("failed to write file part: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func validBookForm() url.Values {
	return url.Values{
		"title":            {"Clean Code"},
		"author":           {"Robert C. Martin"},
		"isbn":             {"9780132350884"},
		"publication_year": {"2008"},
		"publisher":        {"Prentice Hall"},
	}
}
