package simulation

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/BearBump/Trackfy/internal/models"
)

// Сколько дней длится симулируемая доставка (day 0..LastDay).
const LastDay = 10

const RetentionWindow = 30 * 24 * time.Hour

type Rand interface {
	Intn(n int) int
}

// Engine превращает (createdAt, now) в стадию доставки и правдоподобные
// отметки времени. Часы и источник случайности инжектируются, чтобы тесты
// могли зафиксировать "сейчас".
type Engine struct {
	now func() time.Time
	r   Rand
}

func New() *Engine {
	return NewWithClock(nil, nil)
}

func NewWithClock(now func() time.Time, r Rand) *Engine {
	if now == nil {
		now = time.Now
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{now: now, r: r}
}

type stage struct {
	status      string
	description string
}

// Таблица стадий — фиксированный нарратив: day 8 — неудачная попытка
// вручения, day 9 — повторная, day 10 — вручено. Каждый трек проходит
// через все стадии подряд.
var stages = [LastDay + 1]stage{
	{"Despachado", "Objeto postado"},
	{"Em trânsito local", "Objeto em trânsito - por favor aguarde"},
	{"Chegou no centro de distribuição", "Objeto chegou ao centro de distribuição"},
	{"Preparando para sair", "Objeto sendo preparado para envio"},
	{"Pacote em trânsito", "Objeto em trânsito para %s"},
	{"Pacote chegou na cidade", "Objeto chegou em %s"},
	{"Pacote pronto para entrega", "Objeto pronto para entrega"},
	{"Saiu para entrega", "Objeto saiu para entrega"},
	{"Falha na entrega", "Destinatário não encontrado"},
	{"Saindo para entrega novamente", "Nova tentativa de entrega"},
	{"Entregue", "Objeto entregue ao destinatário"},
}

func stageFor(day int, city string) (status, description string) {
	s := stages[day]
	if day == 4 || day == 5 {
		if city == "" {
			city = "destino"
		}
		return s.status, fmt.Sprintf(s.description, city)
	}
	return s.status, s.description
}

// DefaultStatus — безопасная стадия day 0, к которой деградирует любой
// некорректный вход.
func (e *Engine) DefaultStatus() models.Status {
	status, description := stageFor(0, "")
	return models.Status{Day: 0, Status: status, Description: description, Timestamp: e.now()}
}

// CurrentStatus вычисляет текущую стадию: floor((now-createdAt)/24h),
// зажатый в [0, LastDay]. Нулевой createdAt деградирует к DefaultStatus.
func (e *Engine) CurrentStatus(createdAt time.Time, city string) models.Status {
	if createdAt.IsZero() {
		return e.DefaultStatus()
	}

	day := int(e.now().Sub(createdAt) / (24 * time.Hour))
	if day < 0 {
		day = 0
	}
	if day > LastDay {
		day = LastDay
	}

	status, description := stageFor(day, city)
	return models.Status{
		Day:         day,
		Status:      status,
		Description: description,
		Timestamp:   e.Timestamp(createdAt, day),
	}
}

// History возвращает стадии 0..currentDay, новые сверху.
func (e *Engine) History(createdAt time.Time, city string) []models.Status {
	current := e.CurrentStatus(createdAt, city)

	out := make([]models.Status, 0, current.Day+1)
	for day := current.Day; day >= 0; day-- {
		status, description := stageFor(day, city)
		out = append(out, models.Status{
			Day:         day,
			Status:      status,
			Description: description,
			Timestamp:   e.Timestamp(createdAt, day),
		})
	}
	return out
}

// Timestamp синтезирует отметку времени для стадии dayOffset.
// Главный инвариант: результат никогда не позже e.now().
//   - dayOffset 0 — точное время создания;
//   - целевая дата сегодня — случайное время между 6:00 и min(20:00, текущий час);
//   - прошедшая дата — случайное время между 6:00 и 20:00.
func (e *Engine) Timestamp(createdAt time.Time, dayOffset int) time.Time {
	now := e.now()
	if createdAt.IsZero() {
		return now
	}

	target := createdAt.Add(time.Duration(dayOffset) * 24 * time.Hour)
	if target.After(now) {
		return now
	}
	if dayOffset == 0 {
		return createdAt
	}

	y, m, d := target.Date()
	ny, nm, nd := now.Date()
	if y == ny && m == nm && d == nd {
		minHour := 6
		maxHour := now.Hour()
		if maxHour > 20 {
			maxHour = 20
		}
		if maxHour < minHour {
			maxHour = minHour
		}
		t := time.Date(y, m, d, minHour+e.r.Intn(maxHour-minHour+1), e.r.Intn(60), 0, 0, target.Location())
		if t.After(now) {
			return now
		}
		return t
	}

	return time.Date(y, m, d, 6+e.r.Intn(20-6+1), e.r.Intn(60), 0, 0, target.Location())
}

// GenerateCode выдаёт трек-номер формата BR + 9 цифр + 2 заглавные буквы.
// Уникальность по стору не проверяется: при ожидаемых объёмах коллизии
// маловероятны, а формат не несёт смысловой нагрузки.
func (e *Engine) GenerateCode() string {
	return fmt.Sprintf("BR%09d%c%c",
		e.r.Intn(1_000_000_000),
		byte('A'+e.r.Intn(26)),
		byte('A'+e.r.Intn(26)),
	)
}

// Expired сообщает, подлежит ли код удалению ретенцией: вручён (day == LastDay)
// и создан раньше ретенционного окна. Некорректные даты консервативно
// считаются неистёкшими.
func (e *Engine) Expired(createdAt time.Time, city string, retention time.Duration) bool {
	if createdAt.IsZero() {
		return false
	}
	if e.CurrentStatus(createdAt, city).Day < LastDay {
		return false
	}
	return createdAt.Before(e.now().Add(-retention))
}
