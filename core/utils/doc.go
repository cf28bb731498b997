// Package utils provides type coercion helpers shared by the catalog:
// loose string conversion for values decoded from YAML or JSON, and decimal
// parsing for prices that arrive as strings or numbers.
package utils
