// Copyright 2025 The Pressplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character classes for generated secrets. Symbols avoid quoting hazards in
// shells and URLs.
const (
	secretLower   = "abcdefghijklmnopqrstuvwxyz"
	secretUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	secretDigits  = "0123456789"
	secretSymbols = "!@#$%^&*-_=+"

	// MinSecretLength is the floor for generated temporary secrets.
	MinSecretLength = 12
)

// NewTempSecret generates a temporary admin secret of the given length
// (raised to MinSecretLength if below). The result contains at least one
// lowercase letter, one uppercase letter, one digit and one symbol; the
// remaining characters are drawn uniformly from the combined alphabet and
// the whole string is shuffled so the guaranteed characters sit at random
// positions. The secret is returned exactly once and only its Argon2id hash
// is ever persisted.
func NewTempSecret(length int) (string, error) {
	if length < MinSecretLength {
		length = MinSecretLength
	}

	combined := secretLower + secretUpper + secretDigits + secretSymbols

	buf := make([]byte, 0, length)
	for _, class := range []string{secretLower, secretUpper, secretDigits, secretSymbols} {
		c, err := randomByte(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomByte(combined)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates with crypto/rand indices.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func randomByte(alphabet string) (byte, error) {
	i, err := randomInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

// randomInt returns a uniform value in [0, n) without modulo bias.
func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read randomness: %w", err)
	}
	return int(v.Int64()), nil
}
