// Package storage определяет контракт хранилища документа трек-кодов.
// Движок статусов и ретенция от носителя не зависят: файл и Postgres
// реализуют один и тот же интерфейс.
package storage

import (
	"context"

	"github.com/BearBump/Trackfy/internal/models"
)

type Store interface {
	// Load читает документ целиком. Реализация обязана вернуть
	// вылеченные коллекции (не nil-слайсы).
	Load(ctx context.Context) (*models.Data, error)
	// Save перезаписывает документ целиком.
	Save(ctx context.Context, data *models.Data) error
}
