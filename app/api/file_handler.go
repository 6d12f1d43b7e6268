package api

import (
	"fmt"
	"os"
	"path/filepath"

	"courserag/loader/service"

	"github.com/gofiber/fiber/v2"
)

type FileHandler struct {
	ingester *service.Service
	docsDir  string
}

func NewFileHandler(ingester *service.Service, docsDir string) *FileHandler {
	return &FileHandler{
		ingester: ingester,
		docsDir:  docsDir,
	}
}

// HandleUpload saves an uploaded course document into the docs folder and
// ingests the folder, so new material is searchable without a restart.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	if err := os.MkdirAll(h.docsDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(h.docsDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	fmt.Printf("[UPLOAD] File saved to: %s\n", path)

	courses, chunks, err := h.ingester.IngestDirectory(c.Context(), h.docsDir, false)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"courses_added": courses,
		"chunks_added":  chunks,
	})
}
