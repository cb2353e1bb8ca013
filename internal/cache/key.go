package cache

import (
	"strconv"
	"strings"
)

// Key is a structured cache key. It renders as
//
//	{prefix}.{type}[.{suffix}][.{id}][#{version}][.p{page}.n{perPage}]
//
// Zero-valued parts are omitted, ids start at 1.
type Key struct {
	Prefix  string
	Type    string
	Suffix  string
	ID      int64
	Version string
	Page    int
	PerPage int
}

func NewKey(prefix, typ string) Key {
	return Key{Prefix: prefix, Type: typ}
}

func (k Key) WithID(id int64) Key {
	k.ID = id
	return k
}

func (k Key) WithSuffix(suffix string) Key {
	k.Suffix = suffix
	return k
}

func (k Key) WithVersion(version string) Key {
	k.Version = version
	return k
}

func (k Key) WithPage(page, perPage int) Key {
	k.Page = page
	k.PerPage = perPage
	return k
}

// Bucket drops the version and pagination parts.
func (k Key) Bucket() Key {
	return Key{Prefix: k.Prefix, Type: k.Type, Suffix: k.Suffix, ID: k.ID}
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Prefix)
	b.WriteByte('.')
	b.WriteString(k.Type)
	if k.Suffix != "" {
		b.WriteByte('.')
		b.WriteString(k.Suffix)
	}
	if k.ID > 0 {
		b.WriteByte('.')
		b.WriteString(strconv.FormatInt(k.ID, 10))
	}
	if k.Version != "" {
		b.WriteByte('#')
		b.WriteString(k.Version)
	}
	if k.Page > 0 || k.PerPage > 0 {
		b.WriteString(".p")
		b.WriteString(strconv.Itoa(k.Page))
		b.WriteString(".n")
		b.WriteString(strconv.Itoa(k.PerPage))
	}
	return b.String()
}
