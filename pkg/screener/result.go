package screener

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Status is the outcome of capturing one repository.
type Status int

const (
	StatusPending     Status = iota
	StatusCaptured           // image captured (and saved once Path is set)
	StatusBadResponse        // no response or a non-2xx status; nothing captured
	StatusErrored            // navigation, capture or filesystem error
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCaptured:
		return "captured"
	case StatusBadResponse:
		return "bad-response"
	case StatusErrored:
		return "errored"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result contains the result of a screenshot capture.
type Result struct {
	Repository string
	TargetURL  string
	Image      Image
	StatusCode int
	Status     Status
	Path       string
	Error      error
}

type Image []byte

var createFile = os.Create

func (result *Result) fail(err error) *Result {
	result.Status = StatusErrored
	result.Error = err
	return result
}

// SaveImageToFolder writes the image to <folder>/<repository>.png and
// records the path on the result. A failed write turns the result into
// StatusErrored.
func (result *Result) SaveImageToFolder(localFilePath string) (filename string, err error) {
	if result.Status != StatusCaptured || len(result.Image) == 0 {
		return "", errors.New("nothing captured")
	}

	defer func() {
		if err != nil {
			result.fail(err)
		}
	}()

	if err = validateName(result.Repository); err != nil {
		return "", err
	}

	err = os.MkdirAll(localFilePath, 0o755)
	if err != nil {
		return "", err
	}

	filename = filepath.Join(localFilePath, result.Repository+".png")

	file, err := createFile(filename)
	if err != nil {
		return "", err
	}

	// a partial image must not look like a capture
	if _, err = file.Write(result.Image); err != nil {
		file.Close()
		os.Remove(filename)
		return "", err
	}
	if err = file.Close(); err != nil {
		os.Remove(filename)
		return "", err
	}

	result.Path = filename
	return filename, nil
}

// validateName rejects names that cannot be used as a single path segment.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("repository name is empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid repository name: %q", name)
	}
	return nil
}
