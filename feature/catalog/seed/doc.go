// Package seed loads the source-of-truth service definitions from YAML.
package seed
