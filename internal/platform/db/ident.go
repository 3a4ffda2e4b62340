package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
)

// Ident quotes a possibly schema-qualified name such as public.configuracion.
// Each dot-separated part is quoted on its own.
func Ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
