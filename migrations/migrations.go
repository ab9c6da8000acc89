// Package migrations embeds the PostgreSQL schema for the remote wishlist store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
