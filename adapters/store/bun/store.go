// Package storebun persists templates in a Bun-backed SQL database.
package storebun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-sheetfill/sheetfill"
	"github.com/uptrace/bun"
)

// Store keeps template workbooks and their validation issues in a single
// table. Put upserts by key so re-uploading a template replaces the
// previous version.
type Store struct {
	DB  *bun.DB
	Now func() time.Time
}

// NewStore creates a Bun-backed template store.
func NewStore(db *bun.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// CreateTable creates the backing table when it does not exist yet.
func (s *Store) CreateTable(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return sheetfill.NewError(sheetfill.KindInternal, "store database not configured", nil)
	}
	_, err := s.DB.NewCreateTable().Model((*templateModel)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Put inserts or replaces a template.
func (s *Store) Put(ctx context.Context, tpl sheetfill.Template) error {
	if s == nil || s.DB == nil {
		return sheetfill.NewError(sheetfill.KindInternal, "store database not configured", nil)
	}
	if tpl.Key == "" {
		return sheetfill.NewError(sheetfill.KindValidation, "template key is required", nil)
	}
	if tpl.UploadedAt.IsZero() {
		tpl.UploadedAt = s.now()
	}

	model, err := modelFromTemplate(tpl)
	if err != nil {
		return err
	}
	_, err = s.DB.NewInsert().Model(&model).
		On("CONFLICT (key) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("orientation = EXCLUDED.orientation").
		Set("data = EXCLUDED.data").
		Set("issues = EXCLUDED.issues").
		Set("uploaded_at = EXCLUDED.uploaded_at").
		Exec(ctx)
	return err
}

// Get loads a template by key.
func (s *Store) Get(ctx context.Context, key string) (sheetfill.Template, error) {
	if s == nil || s.DB == nil {
		return sheetfill.Template{}, sheetfill.NewError(sheetfill.KindInternal, "store database not configured", nil)
	}
	if key == "" {
		return sheetfill.Template{}, sheetfill.NewError(sheetfill.KindValidation, "template key is required", nil)
	}

	var model templateModel
	err := s.DB.NewSelect().Model(&model).Where("key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sheetfill.Template{}, sheetfill.NewError(sheetfill.KindTemplateNotFound, fmt.Sprintf("template %q not found", key), err)
		}
		return sheetfill.Template{}, err
	}
	return model.toTemplate()
}

// Delete removes a template. Deleting an unknown key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil || s.DB == nil {
		return sheetfill.NewError(sheetfill.KindInternal, "store database not configured", nil)
	}
	if key == "" {
		return sheetfill.NewError(sheetfill.KindValidation, "template key is required", nil)
	}
	_, err := s.DB.NewDelete().Model((*templateModel)(nil)).Where("key = ?", key).Exec(ctx)
	return err
}

// List returns every stored template ordered by key.
func (s *Store) List(ctx context.Context) ([]sheetfill.Template, error) {
	if s == nil || s.DB == nil {
		return nil, sheetfill.NewError(sheetfill.KindInternal, "store database not configured", nil)
	}

	var models []templateModel
	if err := s.DB.NewSelect().Model(&models).Order("key ASC").Scan(ctx); err != nil {
		return nil, err
	}
	templates := make([]sheetfill.Template, 0, len(models))
	for _, model := range models {
		tpl, err := model.toTemplate()
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type templateModel struct {
	bun.BaseModel `bun:"table:sheet_templates,alias:sheet_templates"`

	Key         string    `bun:",pk"`
	Name        string    `bun:"name"`
	Orientation string    `bun:"orientation"`
	Data        []byte    `bun:"data"`
	Issues      []byte    `bun:"issues"`
	UploadedAt  time.Time `bun:"uploaded_at"`
}

func modelFromTemplate(tpl sheetfill.Template) (templateModel, error) {
	issues, err := json.Marshal(tpl.Issues)
	if err != nil {
		return templateModel{}, err
	}
	data := make([]byte, len(tpl.Data))
	copy(data, tpl.Data)

	return templateModel{
		Key:         tpl.Key,
		Name:        tpl.Name,
		Orientation: string(tpl.Orientation),
		Data:        data,
		Issues:      issues,
		UploadedAt:  tpl.UploadedAt,
	}, nil
}

func (m templateModel) toTemplate() (sheetfill.Template, error) {
	tpl := sheetfill.Template{
		Key:         m.Key,
		Name:        m.Name,
		Orientation: sheetfill.Orientation(m.Orientation),
		UploadedAt:  m.UploadedAt,
	}
	tpl.Data = make([]byte, len(m.Data))
	copy(tpl.Data, m.Data)
	if len(m.Issues) > 0 {
		if err := json.Unmarshal(m.Issues, &tpl.Issues); err != nil {
			return sheetfill.Template{}, err
		}
	}
	return tpl, nil
}
