package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/common"
)

// DirectoryGallery serves images from a root directory. Selections are file
// names relative to the root, or absolute paths inside it.
type DirectoryGallery struct {
	root string
}

func NewDirectoryGallery(root string) (*DirectoryGallery, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &DirectoryGallery{root: abs}, nil
}

func (g *DirectoryGallery) Pick(_ context.Context, selection string) (string, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return "", common.ErrAcquisitionCancelled
	}
	p := selection
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(g.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", common.NewAppError("GALLERY_ERROR", fmt.Sprintf("%q is outside the gallery", selection), common.ErrInvalidInput)
	}
	if constants.MapExtToFormat(filepath.Ext(p)) == "" {
		return "", common.NewAppError("GALLERY_ERROR", fmt.Sprintf("%q is not an image", selection), common.ErrInvalidInput)
	}
	st, err := os.Stat(p)
	if err != nil {
		return "", common.NewAppError("GALLERY_ERROR", fmt.Sprintf("%q not found", selection), common.ErrNotFound)
	}
	if !st.Mode().IsRegular() {
		return "", common.NewAppError("GALLERY_ERROR", fmt.Sprintf("%q is not a file", selection), common.ErrInvalidInput)
	}
	return p, nil
}

// List returns the image files directly under the gallery root, skipping hidden files.
func (g *DirectoryGallery) List() ([]string, error) {
	entries, err := os.ReadDir(g.root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && isGalleryImage(e.Name()) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
