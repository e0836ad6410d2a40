// hasher - односторонний хэш секретов (паролей и refresh-токенов) на bcrypt.
package hasher

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxInput - предел длины входа bcrypt. Более длинные секреты
// (подписанные refresh-токены) сначала сворачиваются в SHA-256.
const maxInput = 72

// Hasher хэширует секреты с заданной стоимостью bcrypt.
// Безопасен для конкурентного использования.
type Hasher struct {
	cost int
}

// New создаёт Hasher. Стоимость вне диапазона bcrypt заменяется на bcrypt.DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Hasher{cost: cost}
}

// Hash возвращает bcrypt-хэш секрета со случайной солью.
func (h *Hasher) Hash(plain string) (string, error) {
	const op = "hasher.Hash"

	b, err := bcrypt.GenerateFromPassword(prepare(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// Verify сравнивает секрет с хэшем средствами bcrypt.
func (h *Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(plain)) == nil
}

func prepare(plain string) []byte {
	if len(plain) <= maxInput {
		return []byte(plain)
	}

	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}
