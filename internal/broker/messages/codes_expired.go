package messages

import "time"

// CodesExpired публикуется после цикла ретенции, который что-то удалил.
type CodesExpired struct {
	SweptAt time.Time `json:"swept_at"`

	RemovedCodes       int `json:"removed_codes"`
	RemovedGenerations int `json:"removed_generations"`

	RemainingCodes       int `json:"remaining_codes"`
	RemainingGenerations int `json:"remaining_generations"`
}
