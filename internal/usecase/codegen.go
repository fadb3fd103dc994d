package usecase

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"wifi-voucher-portal/internal/domain"
)

// DefaultVoucherPrefix is used when neither settings nor config name one.
const DefaultVoucherPrefix = "KT"

// voucherAlphabet omits 0/O and 1/I.
const voucherAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	voucherCodeRe = regexp.MustCompile(`^[A-Z0-9]{1,10}-[` + voucherAlphabet + `]{4}-[` + voucherAlphabet + `]{4}-[` + voucherAlphabet + `]{4}$`)
	prefixRe      = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
)

// GenerateVoucherCode returns PREFIX-XXXX-XXXX-XXXX. An empty or unusable
// prefix falls back to DefaultVoucherPrefix.
func GenerateVoucherCode(prefix string) (string, error) {
	prefix = NormalizePrefix(prefix)
	segs := make([]string, 3)
	for i := range segs {
		s, err := randomString(voucherAlphabet, 4)
		if err != nil {
			return "", err
		}
		segs[i] = s
	}
	return prefix + "-" + strings.Join(segs, "-"), nil
}

// GenerateTransactionReference returns TXN-<base36 unix ms>-<6 random>.
// Uniqueness is enforced by the store, not here.
func GenerateTransactionReference(now time.Time) (string, error) {
	suffix, err := randomString(referenceAlphabet, 6)
	if err != nil {
		return "", err
	}
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "TXN-" + ts + "-" + suffix, nil
}

// ValidVoucherCode reports whether code is shaped like a generated code.
func ValidVoucherCode(code string) bool {
	return voucherCodeRe.MatchString(code)
}

// NormalizeVoucherCode trims and upper-cases user input.
func NormalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func NormalizePrefix(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixRe.MatchString(prefix) {
		return DefaultVoucherPrefix
	}
	return prefix
}

// randomString draws n characters uniformly from alphabet using rejection
// sampling over crypto/rand bytes.
func randomString(alphabet string, n int) (string, error) {
	size := len(alphabet)
	limit := 256 - 256%size
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%size])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func newID() string { return uuid.NewString() }

// requireID accepts only the hyphenated 36-character UUID form.
func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, field)
	}
	if len(id) != 36 {
		return fmt.Errorf("%w: %s must be a UUID", domain.ErrInvalidArgument, field)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s must be a UUID", domain.ErrInvalidArgument, field)
	}
	return nil
}
