package storage

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"unicode/utf8"

	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/logger"

	"github.com/google/uuid"
)

// InvalidTextPlaceholder replaces a text dump body that is not valid UTF-8
const InvalidTextPlaceholder = "Could not print bytes"

// Writer materializes attachment responses as files
type Writer struct {
	defaultExt string
	logger     logger.Logger
	newName    func() string
}

// NewWriter creates a Writer appending defaultExt to extension-less names
func NewWriter(defaultExt string, log logger.Logger) *Writer {
	if defaultExt == "" {
		defaultExt = ".pdf"
	}
	return &Writer{
		defaultExt: defaultExt,
		logger:     logger.OrGlobal(log),
		newName:    func() string { return uuid.New().String() },
	}
}

// WriteAttachment stores a file attachment response in dir and returns
// the written path. A 429 status is a fatal quota error and an empty body
// writes nothing. An existing file of the same name is replaced.
func (w *Writer) WriteAttachment(resp *http.Response, dir string) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		logger.LogQuotaExhausted(w.logger, "attachment")
		return "", errs.Quota(resp.StatusCode, "attachment download rejected: "+errs.QuotaPhrase)
	}

	name, ok := FileNameFromDisposition(resp.Header.Get("Content-Disposition"), w.defaultExt)
	if !ok {
		name = w.newName() + ".txt"
		w.logger.WithFields(map[string]interface{}{
			"dir":  dir,
			"file": name,
		}).Info("No file name in response, invented one")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read attachment body")
	}
	if len(body) == 0 {
		logger.LogAttachment(w.logger, dir, "", 0, nil)
		return "", nil
	}

	path := filepath.Join(dir, name)
	if err := w.replace(path, body); err != nil {
		logger.LogAttachment(w.logger, dir, name, len(body), err)
		return "", err
	}

	logger.LogAttachment(w.logger, dir, name, len(body), nil)
	return path, nil
}

// WriteAsText dumps a link attachment response into a uniquely named
// text file: the directory, the status line and headers, then the body.
func (w *Writer) WriteAsText(resp *http.Response, dir string) (string, error) {
	defer resp.Body.Close()

	var text bytes.Buffer
	text.WriteString(dir)
	text.WriteString("\n")
	describeResponse(&text, resp)

	body, err := io.ReadAll(resp.Body)
	if err == nil && len(body) > 0 {
		text.WriteString("\n")
		if utf8.Valid(body) {
			text.Write(body)
		} else {
			text.WriteString(InvalidTextPlaceholder)
		}
	}

	path := filepath.Join(dir, w.newName()+".txt")
	if err := w.replace(path, text.Bytes()); err != nil {
		return "", err
	}

	logger.LogAttachment(w.logger, dir, filepath.Base(path), text.Len(), nil)
	return path, nil
}

func (w *Writer) replace(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to create directory")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrorTypeIO, err, "failed to remove existing file")
	}
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, path)
	}
	return nil
}

func describeResponse(b *bytes.Buffer, resp *http.Response) {
	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	fmt.Fprintf(b, "Response { url: %q, status: %s }\n", url, status)
	resp.Header.Write(b)
}
