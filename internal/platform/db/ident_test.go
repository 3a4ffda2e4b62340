package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdent(t *testing.T) {
	assert.Equal(t, `"configuracion"`, Ident("configuracion"))
	assert.Equal(t, `"public"."configuracion"`, Ident("public.configuracion"))
	assert.Equal(t, `"cortes_""norte"`, Ident(`cortes_"norte`))
}
