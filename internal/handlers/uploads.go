package handlers

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storefront/internal/logging"
	"storefront/internal/services"
)

const imageField = "images"

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// saveImages stores the uploaded product images under mediaDir and returns their paths
// relative to it, in upload order. Requests that are not multipart carry no images.
func saveImages(c *fiber.Ctx, mediaDir string) ([]string, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid multipart form: %v", services.ErrValidation, err)
	}
	files := form.File[imageField]
	if len(files) == 0 {
		return nil, nil
	}

	for _, fh := range files {
		if !imageExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
			return nil, fmt.Errorf("%w: %s is not a supported image", services.ErrValidation, fh.Filename)
		}
	}

	dir := filepath.Join(mediaDir, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		name := uuid.New().String() + strings.ToLower(filepath.Ext(fh.Filename))
		if err := c.SaveFile(fh, filepath.Join(dir, name)); err != nil {
			removeFiles(c, mediaDir, paths)
			return nil, fmt.Errorf("failed to save image %s: %w", fh.Filename, err)
		}
		paths = append(paths, path.Join("products", name))
	}
	return paths, nil
}

// removeFiles deletes stored images given by their paths relative to mediaDir.
func removeFiles(c *fiber.Ctx, mediaDir string, paths []string) {
	for _, p := range paths {
		if err := os.Remove(filepath.Join(mediaDir, filepath.FromSlash(p))); err != nil {
			logging.FromContext(c.UserContext()).Warn("failed to remove uploaded image", "path", p, "error", err)
		}
	}
}
