package auth

import (
	"errors"

	"github.com/alexedwards/argon2id"
)

// ErrHashInvalido indica hash persistido fora do formato argon2id.
var ErrHashInvalido = errors.New("hash de senha inválido")

// argon2id com 64 MiB; os parâmetros ficam gravados em cada hash, então
// alterá-los não invalida senhas antigas.
var argonParams = argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func Hash(senha string) (string, error) {
	return argon2id.CreateHash(senha, &argonParams)
}

// Verify devolve ErrHashInvalido quando o hash gravado não decodifica.
func Verify(senha, hash string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(senha, hash)
	if err != nil {
		return false, errors.Join(ErrHashInvalido, err)
	}
	return ok, nil
}

// ValidHash é usado para aceitar BOOTSTRAP_ADMIN_SENHA_HASH já gerado pelo hashpass.
func ValidHash(hash string) bool {
	p, _, _, err := argon2id.DecodeHash(hash)
	return err == nil && p.KeyLength > 0
}
