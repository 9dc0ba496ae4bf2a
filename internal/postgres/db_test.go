package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaIsIdempotent(t *testing.T) {
	s := Schema()
	for _, table := range []string{"products", "product_stock", "orders", "order_items", "reservations"} {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.NotContains(t, strings.ToUpper(s), "DROP ")
	assert.Equal(t, strings.Count(s, "CREATE TABLE"), strings.Count(s, "IF NOT EXISTS")-1)
}
