// Package filestore хранит документ трек-кодов одним JSON-файлом.
// Чтение никогда не роняет вызывающего: любая ошибка чтения или разбора
// логируется, а наружу уходят пустые коллекции.
package filestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BearBump/Trackfy/internal/models"
	"github.com/BearBump/Trackfy/internal/simulation"
	"github.com/pkg/errors"
)

type FileStore struct {
	path string
	sim  *simulation.Engine
}

func New(path string, sim *simulation.Engine) *FileStore {
	if sim == nil {
		sim = simulation.New()
	}
	return &FileStore{path: path, sim: sim}
}

// Сырые структуры: поля читаем расслабленно, чтобы один битый атрибут
// не ронял разбор всего документа.
type rawData struct {
	Codes       []json.RawMessage `json:"codes"`
	Generations []json.RawMessage `json:"generations"`
}

type rawCode struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	City          string          `json:"city"`
	CreatedAt     string          `json:"createdAt"`
	GenerationID  string          `json:"generationId"`
	CurrentStatus json.RawMessage `json:"currentStatus"`
}

type rawGeneration struct {
	ID        string            `json:"id"`
	CreatedAt string            `json:"createdAt"`
	Codes     []json.RawMessage `json:"codes"`
}

func (s *FileStore) Load(ctx context.Context) (*models.Data, error) {
	data := &models.Data{
		Codes:       []models.TrackingCode{},
		Generations: []models.Generation{},
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read data file", "path", s.path, "error", err.Error())
		}
		return data, nil
	}

	var raw rawData
	if err := json.Unmarshal(b, &raw); err != nil {
		slog.Warn("parse data file", "path", s.path, "error", err.Error())
		return data, nil
	}

	for _, rc := range raw.Codes {
		code, ok := s.healCode(rc)
		if !ok {
			continue
		}
		data.Codes = append(data.Codes, code)
	}

	for _, rg := range raw.Generations {
		var g rawGeneration
		if err := json.Unmarshal(rg, &g); err != nil {
			slog.Warn("skip malformed generation", "error", err.Error())
			continue
		}
		gen := models.Generation{
			ID:        g.ID,
			CreatedAt: s.healTime(g.CreatedAt),
			Codes:     []models.TrackingCode{},
		}
		for _, rc := range g.Codes {
			code, ok := s.healCode(rc)
			if !ok {
				continue
			}
			gen.Codes = append(gen.Codes, code)
		}
		gen.TotalCodes = len(gen.Codes)
		data.Generations = append(data.Generations, gen)
	}

	return data, nil
}

func (s *FileStore) healCode(b json.RawMessage) (models.TrackingCode, bool) {
	var rc rawCode
	if err := json.Unmarshal(b, &rc); err != nil {
		slog.Warn("skip malformed code", "error", err.Error())
		return models.TrackingCode{}, false
	}

	code := models.TrackingCode{
		ID:           rc.ID,
		Code:         rc.Code,
		City:         rc.City,
		CreatedAt:    s.healTime(rc.CreatedAt),
		GenerationID: rc.GenerationID,
	}

	var st models.Status
	if len(rc.CurrentStatus) == 0 || json.Unmarshal(rc.CurrentStatus, &st) != nil {
		st = s.sim.DefaultStatus()
	}
	code.CurrentStatus = st
	return code, true
}

// healTime: отсутствующая отметка лечится на "сейчас"; непарсимая становится
// нулевой и деградирует ниже по стеку к day-0 статусу.
func (s *FileStore) healTime(v string) time.Time {
	if v == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *FileStore) Save(ctx context.Context, data *models.Data) error {
	out := models.Data{
		Codes:       data.Codes,
		Generations: data.Generations,
	}
	if out.Codes == nil {
		out.Codes = []models.TrackingCode{}
	}
	if out.Generations == nil {
		out.Generations = []models.Generation{}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal data")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "ensure data dir")
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить
	// полузаписанный документ при падении.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrap(err, "write data file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "rename data file")
	}
	return nil
}
