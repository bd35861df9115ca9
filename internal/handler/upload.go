package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"backoffice/internal/gateway"

	"github.com/gin-gonic/gin"
)

// maxUploadSize bounds a single attachment or spreadsheet.
const maxUploadSize = 10 << 20

var errFileTooLarge = errors.New("file exceeds 10 MB")

func readAttachment(fh *multipart.FileHeader) (gateway.Attachment, error) {
	if fh.Size > maxUploadSize {
		return gateway.Attachment{}, errFileTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return gateway.Attachment{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, maxUploadSize+1))
	if err != nil {
		return gateway.Attachment{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) > maxUploadSize {
		return gateway.Attachment{}, errFileTooLarge
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	return gateway.Attachment{Filename: fh.Filename, ContentType: ct, Content: content}, nil
}

// formAttachments reads every file sent under field. A missing field or a
// body that is not multipart is not an error.
func formAttachments(c *gin.Context, field string) ([]gateway.Attachment, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse upload: %w", err)
	}
	var out []gateway.Attachment
	for _, fh := range form.File[field] {
		att, err := readAttachment(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}
