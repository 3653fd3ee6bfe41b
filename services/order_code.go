package services

import (
	"encoding/binary"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	codeSpace  = 2176782336 // 36^6
	codeStride = 1000003    // prime, coprime with 36^6
	codeWidth  = 6
)

// CodeGenerator produces order codes "PZ<yymmddhhmmss>-<6 base36 chars>".
// The suffix is a per-process sequence scrambled by a random offset and a
// stride coprime with 36^6, so it never repeats within a process before 36^6
// codes and does not reveal the order count.
type CodeGenerator struct {
	seq    atomic.Uint64
	offset uint64
}

func NewCodeGenerator() *CodeGenerator {
	u := uuid.New()
	return &CodeGenerator{offset: binary.BigEndian.Uint64(u[:8]) % codeSpace}
}

func (g *CodeGenerator) Next(now time.Time) string {
	n := g.seq.Add(1)
	v := (g.offset + (n%codeSpace)*codeStride) % codeSpace
	suffix := strings.ToUpper(strconv.FormatUint(v, 36))
	if len(suffix) < codeWidth {
		suffix = strings.Repeat("0", codeWidth-len(suffix)) + suffix
	}
	return "PZ" + now.UTC().Format("060102150405") + "-" + suffix
}

var defaultCodes = NewCodeGenerator()

// NewOrderCode returns a fresh order code from the process-wide generator.
func NewOrderCode(now time.Time) string {
	return defaultCodes.Next(now)
}
