package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// PostMultipart uploads a single file as multipart/form-data under the given
// field name and decodes the JSON response into out. The body is built once
// and passed through the transport unmodified.
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	return c.Do(ctx, http.MethodPost, path, &buf, out, WithContentType(writer.FormDataContentType()))
}
