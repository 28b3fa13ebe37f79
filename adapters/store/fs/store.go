package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-sheetfill/sheetfill"
)

const (
	templateExt = ".xlsx"
	metaExt     = ".json"
)

// Store provides filesystem-backed template storage. Each template occupies
// a workbook file plus a metadata sidecar under Root; Put replaces both via
// rename so a concurrent Get always observes a complete version.
type Store struct {
	Root string
	Now  func() time.Time
}

// NewStore creates a filesystem-backed template store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

type metaFile struct {
	Name        string    `json:"name"`
	Orientation string    `json:"orientation"`
	Issues      []string  `json:"issues,omitempty"`
	Advisory    []bool    `json:"advisory,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Put stores a template wholesale, replacing any previous version.
func (s *Store) Put(ctx context.Context, tpl sheetfill.Template) error {
	_ = ctx
	if s == nil {
		return sheetfill.NewError(sheetfill.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return sheetfill.NewError(sheetfill.KindValidation, "store root is required", nil)
	}
	if tpl.Key == "" {
		return sheetfill.NewError(sheetfill.KindValidation, "template key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(tpl.Key, templateExt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pathOnDisk), 0o755); err != nil {
		return err
	}

	if err := writeAtomic(pathOnDisk, tpl.Data); err != nil {
		return err
	}

	uploadedAt := tpl.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = s.now()
	}
	meta := metaFile{
		Name:        tpl.Name,
		Orientation: string(tpl.Orientation),
		UploadedAt:  uploadedAt,
	}
	for _, issue := range tpl.Issues {
		meta.Issues = append(meta.Issues, issue.Message)
		meta.Advisory = append(meta.Advisory, issue.Advisory)
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	metaOnDisk, err := s.resolvePath(tpl.Key, metaExt)
	if err != nil {
		return err
	}
	return writeAtomic(metaOnDisk, payload)
}

// Get loads a template snapshot. The returned bytes belong to the caller; a
// concurrent Put cannot touch them.
func (s *Store) Get(ctx context.Context, key string) (sheetfill.Template, error) {
	_ = ctx
	if s == nil {
		return sheetfill.Template{}, sheetfill.NewError(sheetfill.KindInternal, "store is nil", nil)
	}
	if key == "" {
		return sheetfill.Template{}, sheetfill.NewError(sheetfill.KindValidation, "template key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key, templateExt)
	if err != nil {
		return sheetfill.Template{}, err
	}
	data, err := os.ReadFile(pathOnDisk)
	if err != nil {
		if os.IsNotExist(err) {
			return sheetfill.Template{}, sheetfill.NewError(sheetfill.KindTemplateNotFound, fmt.Sprintf("template %q not found", key), err)
		}
		return sheetfill.Template{}, err
	}

	tpl := sheetfill.Template{Key: key, Data: data, Orientation: sheetfill.OrientationPortrait}
	metaOnDisk, err := s.resolvePath(key, metaExt)
	if err != nil {
		return sheetfill.Template{}, err
	}
	if payload, err := os.ReadFile(metaOnDisk); err == nil {
		var meta metaFile
		if err := json.Unmarshal(payload, &meta); err == nil {
			tpl.Name = meta.Name
			if meta.Orientation != "" {
				tpl.Orientation = sheetfill.Orientation(meta.Orientation)
			}
			tpl.UploadedAt = meta.UploadedAt
			for i, message := range meta.Issues {
				issue := sheetfill.Issue{Message: message}
				if i < len(meta.Advisory) {
					issue.Advisory = meta.Advisory[i]
				}
				tpl.Issues = append(tpl.Issues, issue)
			}
		}
	}
	return tpl, nil
}

// Delete removes a template and its metadata.
func (s *Store) Delete(ctx context.Context, key string) error {
	_ = ctx
	if s == nil {
		return sheetfill.NewError(sheetfill.KindInternal, "store is nil", nil)
	}
	if key == "" {
		return sheetfill.NewError(sheetfill.KindValidation, "template key is required", nil)
	}

	pathOnDisk, err := s.resolvePath(key, templateExt)
	if err != nil {
		return err
	}
	metaOnDisk, err := s.resolvePath(key, metaExt)
	if err != nil {
		return err
	}
	_ = os.Remove(pathOnDisk)
	_ = os.Remove(metaOnDisk)
	return nil
}

// List returns every stored template.
func (s *Store) List(ctx context.Context) ([]sheetfill.Template, error) {
	if s == nil {
		return nil, sheetfill.NewError(sheetfill.KindInternal, "store is nil", nil)
	}
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var templates []sheetfill.Template
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, templateExt) {
			continue
		}
		tpl, err := s.Get(ctx, strings.TrimSuffix(name, templateExt))
		if err != nil {
			continue
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

func (s *Store) resolvePath(key, ext string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." || strings.Contains(rel, "/") {
		return "", sheetfill.NewError(sheetfill.KindValidation, "invalid template key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel+ext), nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func writeAtomic(pathOnDisk string, data []byte) error {
	dir := filepath.Dir(pathOnDisk)
	tmp, err := os.CreateTemp(dir, ".sheetfill-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), pathOnDisk)
}
