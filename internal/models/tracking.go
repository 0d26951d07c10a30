package models

import "time"

// Status описывает одну стадию симулируемой доставки (day 0..10).
type Status struct {
	Day         int       `json:"day"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// TrackingCode — один симулируемый трек-код.
// CurrentStatus в файле — только кэш для удобства; читатели пересчитывают
// его заново по (CreatedAt, now).
type TrackingCode struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	City          string    `json:"city"`
	CreatedAt     time.Time `json:"createdAt"`
	GenerationID  string    `json:"generationId"`
	CurrentStatus Status    `json:"currentStatus"`
}

// Generation — партия кодов, созданных одним запросом.
// Инвариант: TotalCodes == len(Codes) после каждой мутации.
type Generation struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"createdAt"`
	Codes      []TrackingCode `json:"codes"`
	TotalCodes int            `json:"totalCodes"`
}

// Data — весь персистентный документ целиком.
type Data struct {
	Codes       []TrackingCode `json:"codes"`
	Generations []Generation   `json:"generations"`
}

type StatsResult struct {
	Total      int `json:"total"`
	Delivered  int `json:"delivered"`
	InTransit  int `json:"inTransit"`
	TodayCodes int `json:"todayCodes"`
}

type CleanupResult struct {
	RemovedCodes         int `json:"removedCodes"`
	RemovedGenerations   int `json:"removedGenerations"`
	RemainingCodes       int `json:"remainingCodes"`
	RemainingGenerations int `json:"remainingGenerations"`
}
