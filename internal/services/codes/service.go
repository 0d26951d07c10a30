package codes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/Trackfy/internal/cache"
	"github.com/BearBump/Trackfy/internal/models"
	"github.com/BearBump/Trackfy/internal/simulation"
	"github.com/BearBump/Trackfy/internal/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

const recentWindow = 30 * time.Minute

// Service владеет циклом load→mutate→save над документом трек-кодов.
// Один мьютекс сериализует все мутации, включая ретенцию: стор сам по себе
// никакой изоляции не даёт.
type Service struct {
	store      storage.Store
	sim        *simulation.Engine
	cache      cache.BytesCache
	currentTTL time.Duration
	retention  time.Duration
	now        func() time.Time

	mu sync.Mutex
}

func New(store storage.Store, sim *simulation.Engine, c cache.BytesCache, currentTTL time.Duration) *Service {
	if sim == nil {
		sim = simulation.New()
	}
	return &Service{
		store:      store,
		sim:        sim,
		cache:      c,
		currentTTL: currentTTL,
		retention:  simulation.RetentionWindow,
		now:        time.Now,
	}
}

func (s *Service) WithRetention(d time.Duration) *Service {
	if d > 0 {
		s.retention = d
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// loadForRead: чтения не падают — при ошибке стора отдаём пустой документ.
func (s *Service) loadForRead(ctx context.Context) *models.Data {
	data, err := s.store.Load(ctx)
	if err != nil || data == nil {
		if err != nil {
			slog.Error("load store", "error", err.Error())
		}
		return &models.Data{Codes: []models.TrackingCode{}, Generations: []models.Generation{}}
	}
	return data
}

func (s *Service) withCurrent(c models.TrackingCode) models.TrackingCode {
	c.CurrentStatus = s.sim.CurrentStatus(c.CreatedAt, c.City)
	return c
}

func (s *Service) ListCodes(ctx context.Context) []models.TrackingCode {
	data := s.loadForRead(ctx)
	out := make([]models.TrackingCode, 0, len(data.Codes))
	for _, c := range data.Codes {
		out = append(out, s.withCurrent(c))
	}
	return out
}

func (s *Service) ListGenerations(ctx context.Context) []models.Generation {
	data := s.loadForRead(ctx)
	out := make([]models.Generation, 0, len(data.Generations))
	for _, g := range data.Generations {
		codes := make([]models.TrackingCode, 0, len(g.Codes))
		for _, c := range g.Codes {
			codes = append(codes, s.withCurrent(c))
		}
		g.Codes = codes
		out = append(out, g)
	}
	return out
}

func (s *Service) RecentCodes(ctx context.Context) []models.TrackingCode {
	data := s.loadForRead(ctx)
	cutoff := s.now().Add(-recentWindow)

	out := make([]models.TrackingCode, 0)
	for _, c := range data.Codes {
		if c.CreatedAt.IsZero() || c.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, s.withCurrent(c))
	}
	return out
}

// GetByCode ищет трек без учёта регистра. Кэш — best-effort: промах или
// ошибка кэша просто ведут в стор.
func (s *Service) GetByCode(ctx context.Context, code string) (models.TrackingCode, error) {
	if strings.TrimSpace(code) == "" {
		return models.TrackingCode{}, errors.Wrap(ErrInvalidInput, "code is required")
	}

	key := currentKey(code)
	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var c models.TrackingCode
			if json.Unmarshal(b, &c) == nil {
				return c, nil
			}
		}
	}

	data := s.loadForRead(ctx)
	for _, c := range data.Codes {
		if strings.EqualFold(c.Code, code) {
			c = s.withCurrent(c)
			if s.cache != nil && s.currentTTL > 0 {
				b, _ := json.Marshal(c)
				_ = s.cache.Set(ctx, key, b, s.currentTTL)
			}
			return c, nil
		}
	}
	return models.TrackingCode{}, errors.Wrapf(ErrNotFound, "code %s", code)
}

func (s *Service) History(ctx context.Context, code string) ([]models.Status, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "code is required")
	}

	data := s.loadForRead(ctx)
	for _, c := range data.Codes {
		if strings.EqualFold(c.Code, code) {
			return s.sim.History(c.CreatedAt, c.City), nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "code %s", code)
}

// CreateBatch создаёт по коду на каждый непустой город. Все коды партии
// делят один createdAt; новая генерация встаёт в начало списка.
func (s *Service) CreateBatch(ctx context.Context, cities []string) (models.Generation, error) {
	if len(cities) == 0 {
		return models.Generation{}, errors.Wrap(ErrInvalidInput, "cities is empty")
	}
	if len(cities) > 10_000 {
		return models.Generation{}, errors.Wrap(ErrInvalidInput, "too many cities (max 10000)")
	}

	clean := make([]string, 0, len(cities))
	for _, city := range cities {
		if c := strings.TrimSpace(city); c != "" {
			clean = append(clean, c)
		}
	}
	if len(clean) == 0 {
		return models.Generation{}, errors.Wrap(ErrInvalidInput, "no valid cities provided")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load(ctx)
	if err != nil {
		return models.Generation{}, errors.Wrap(err, "load store")
	}

	createdAt := s.now().UTC()
	gen := models.Generation{
		ID:        uuid.NewString(),
		CreatedAt: createdAt,
		Codes:     make([]models.TrackingCode, 0, len(clean)),
	}

	for _, city := range clean {
		c := models.TrackingCode{
			ID:           uuid.NewString(),
			Code:         s.sim.GenerateCode(),
			City:         city,
			CreatedAt:    createdAt,
			GenerationID: gen.ID,
		}
		c.CurrentStatus = s.sim.CurrentStatus(c.CreatedAt, c.City)
		gen.Codes = append(gen.Codes, c)
		data.Codes = append(data.Codes, c)
	}
	gen.TotalCodes = len(gen.Codes)

	data.Generations = append([]models.Generation{gen}, data.Generations...)

	if err := s.store.Save(ctx, data); err != nil {
		return models.Generation{}, errors.Wrap(err, "save store")
	}
	return gen, nil
}

func (s *Service) DeleteCode(ctx context.Context, id string) (models.TrackingCode, error) {
	deleted, err := s.DeleteCodes(ctx, []string{id})
	if err != nil {
		return models.TrackingCode{}, err
	}
	return deleted[0], nil
}

// DeleteCodes удаляет коды по id и каскадно вычищает их из генераций.
// Опустевшие генерации не переживают операцию.
func (s *Service) DeleteCodes(ctx context.Context, ids []string) ([]models.TrackingCode, error) {
	valid := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			valid[id] = struct{}{}
		}
	}
	if len(valid) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "ids is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load store")
	}

	deleted := make([]models.TrackingCode, 0, len(valid))
	kept := data.Codes[:0]
	for _, c := range data.Codes {
		if _, ok := valid[c.ID]; ok {
			deleted = append(deleted, c)
			continue
		}
		kept = append(kept, c)
	}
	if len(deleted) == 0 {
		return nil, errors.Wrap(ErrNotFound, "no codes matched")
	}
	data.Codes = kept

	dropGenerationCodes(data, func(c models.TrackingCode) bool {
		_, ok := valid[c.ID]
		return ok
	})

	if err := s.store.Save(ctx, data); err != nil {
		return nil, errors.Wrap(err, "save store")
	}

	if s.cache != nil {
		for _, c := range deleted {
			_ = s.cache.Del(ctx, currentKey(c.Code))
		}
	}

	for _, c := range deleted {
		slog.Info("code deleted", "code", c.Code, "id", c.ID)
	}
	return deleted, nil
}

func (s *Service) Stats(ctx context.Context) models.StatsResult {
	data := s.loadForRead(ctx)
	now := s.now()

	var out models.StatsResult
	out.Total = len(data.Codes)
	for _, c := range data.Codes {
		if s.sim.CurrentStatus(c.CreatedAt, c.City).Day == simulation.LastDay {
			out.Delivered++
		} else {
			out.InTransit++
		}
		y, m, d := c.CreatedAt.Date()
		ny, nm, nd := now.Date()
		if !c.CreatedAt.IsZero() && y == ny && m == nm && d == nd {
			out.TodayCodes++
		}
	}
	return out
}

// Cleanup — один проход ретенции: вычёркивает вручённые коды старше окна,
// каскадом обновляет генерации и сохраняет только если что-то удалил.
func (s *Service) Cleanup(ctx context.Context) (models.CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Load(ctx)
	if err != nil {
		return models.CleanupResult{}, errors.Wrap(err, "load store")
	}

	var res models.CleanupResult

	kept := data.Codes[:0]
	for _, c := range data.Codes {
		if s.sim.Expired(c.CreatedAt, c.City, s.retention) {
			res.RemovedCodes++
			slog.Info("removing delivered code", "code", c.Code, "created_at", c.CreatedAt)
			if s.cache != nil {
				_ = s.cache.Del(ctx, currentKey(c.Code))
			}
			continue
		}
		kept = append(kept, c)
	}
	data.Codes = kept

	res.RemovedGenerations = dropGenerationCodes(data, func(c models.TrackingCode) bool {
		return s.sim.Expired(c.CreatedAt, c.City, s.retention)
	})

	res.RemainingCodes = len(data.Codes)
	res.RemainingGenerations = len(data.Generations)

	if res.RemovedCodes == 0 && res.RemovedGenerations == 0 {
		return res, nil
	}

	if err := s.store.Save(ctx, data); err != nil {
		return models.CleanupResult{}, errors.Wrap(err, "save store")
	}
	return res, nil
}

// dropGenerationCodes вычёркивает из каждой генерации коды, подходящие под
// remove, обновляет TotalCodes и выбрасывает опустевшие генерации.
// Возвращает число удалённых генераций.
func dropGenerationCodes(data *models.Data, remove func(models.TrackingCode) bool) int {
	dropped := 0
	keptGens := data.Generations[:0]
	for _, g := range data.Generations {
		keptCodes := g.Codes[:0]
		for _, c := range g.Codes {
			if remove(c) {
				continue
			}
			keptCodes = append(keptCodes, c)
		}
		g.Codes = keptCodes
		g.TotalCodes = len(g.Codes)

		if g.TotalCodes == 0 {
			dropped++
			slog.Info("removing empty generation", "generation_id", g.ID)
			continue
		}
		keptGens = append(keptGens, g)
	}
	data.Generations = keptGens
	return dropped
}

func currentKey(code string) string {
	return fmt.Sprintf("code:%s:current", strings.ToUpper(code))
}
