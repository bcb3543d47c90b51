package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
)

// ProgressFunc receives transfer completion in percent. Only called when the
// total size is known.
type ProgressFunc func(percent float64)

// Upload streams a file as multipart/form-data. Same token semantics as
// Request, but a distinct progress-capable transport: a 401 invokes the
// unauthorized handler exactly once and is never retried.
func (c *Client) Upload(ctx context.Context, endpoint, filename string, file io.Reader, size int64, fields map[string]string, progress ProgressFunc) (json.RawMessage, error) {
	if !c.probe.Online() {
		return nil, &domain.NetworkError{Err: domain.ErrOffline}
	}

	pipeReader, pipeWriter := io.Pipe()
	writer := multipart.NewWriter(pipeWriter)

	source := file
	if progress != nil && size > 0 {
		source = &progressReader{reader: file, total: size, report: progress}
	}

	go func() {
		err := func() error {
			for key, value := range fields {
				if err := writer.WriteField(key, value); err != nil {
					return err
				}
			}
			part, err := writer.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, source); err != nil {
				return err
			}
			return writer.Close()
		}()
		pipeWriter.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, pipeReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.IncUnauthorized()
		if handler := c.unauthorizedHandler(); handler != nil {
			handler.HandleUnauthorized(ctx)
		}
		return nil, &domain.HTTPError{Status: resp.StatusCode, Message: "session expired"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.HTTPError{Status: resp.StatusCode, Message: messageFromBody(body, fmt.Sprintf("upload failed: %d", resp.StatusCode))}
	}

	if !json.Valid(body) {
		// Some endpoints answer an upload with an empty or non-JSON body;
		// the upload itself succeeded.
		return nil, nil
	}
	return json.RawMessage(body), nil
}

// Download streams a (possibly POST-driven) file export into dst and returns
// the server-suggested filename when one was attached.
func (c *Client) Download(ctx context.Context, method, endpoint string, body any, dst io.Writer, progress ProgressFunc) (string, error) {
	if !c.probe.Online() {
		return "", &domain.NetworkError{Err: domain.ErrOffline}
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.IncUnauthorized()
		if handler := c.unauthorizedHandler(); handler != nil {
			handler.HandleUnauthorized(ctx)
		}
		return "", &domain.HTTPError{Status: resp.StatusCode, Message: "session expired"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &domain.HTTPError{Status: resp.StatusCode, Message: fmt.Sprintf("download failed: %d", resp.StatusCode)}
	}

	source := io.Reader(resp.Body)
	if progress != nil && resp.ContentLength > 0 {
		source = &progressReader{reader: resp.Body, total: resp.ContentLength, report: progress}
	}

	written, err := io.Copy(dst, source)
	if err != nil {
		return "", &domain.NetworkError{Err: err}
	}
	c.logger.Debug("download complete",
		zap.String("endpoint", endpoint),
		zap.Int64("bytes", written),
	)

	return filenameFromDisposition(resp.Header.Get("Content-Disposition")), nil
}

type progressReader struct {
	reader io.Reader
	total  int64
	done   int64
	report ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.done += int64(n)
		r.report(float64(r.done) / float64(r.total) * 100)
	}
	return n, err
}

func filenameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
