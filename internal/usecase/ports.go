package usecase

import (
	"context"
	"time"
)

// Locker serialises work on one key across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// TaskSubmitter queues background work. Submit must not block.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

// SecretCodec seals sensitive setting values at rest.
type SecretCodec interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) error
}
