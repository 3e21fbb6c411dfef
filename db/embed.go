// Package db holds the embedded SQL schema applied at startup.
package db

import _ "embed"

// Schema is the DDL for the products, stock, coupon, and order tables.
//
//go:embed migrations/001_schema.sql
var Schema string
