// Package gridcache caches rendered grid responses for the serve command.
package gridcache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	"github.com/hexmesh/hexmesh/geo"
)

// KeyFor hashes the full grid request so any parameter change maps to a
// distinct cache entry.
func KeyFor(b orb.Bound, cellSide float64, unit geo.Unit, triangles bool, props string) uint64 {
	var sb strings.Builder
	for _, f := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1], cellSide} {
		sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		sb.WriteByte('|')
	}
	sb.WriteString(string(unit))
	sb.WriteByte('|')
	if triangles {
		sb.WriteString("tri")
	}
	sb.WriteByte('|')
	sb.WriteString(props)
	return xxhash.Sum64String(sb.String())
}

type Cache struct {
	lru *lru.Cache[uint64, []byte]
}

// New returns a cache holding up to size rendered responses.
func New(size int) *Cache {
	if size <= 0 {
		size = 128
	}
	c, _ := lru.New[uint64, []byte](size)
	return &Cache{lru: c}
}

func (c *Cache) Get(key uint64) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Add(key uint64, body []byte) {
	c.lru.Add(key, body)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
