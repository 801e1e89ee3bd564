package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// runSchema emits the JSON Schema for the spec document format to stdout
// (spec.md §6, §8: "schema output parses as a valid JSON Schema
// document"). The schema describes the wire shape internal/specfile's doc*
// types decode (TOML or YAML, same fields either way).
func runSchema(args []string) int {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(specJSONSchema); err != nil {
		fmt.Fprintf(os.Stderr, "bintest: %v\n", err)
		return exitError
	}
	return exitSuccess
}

var matcherSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"equals":   map[string]any{"type": "string"},
		"contains": map[string]any{"type": "string"},
		"regex":    map[string]any{"type": "string"},
	},
}

var actionSchema = map[string]any{
	"type":     "object",
	"required": []string{"type"},
	"properties": map[string]any{
		"type": map[string]any{
			"enum": []string{
				"write_file", "create_dir", "copy_file", "copy_dir",
				"remove_file", "remove_dir", "run", "sql", "sql_file",
				"db_snapshot", "db_restore",
			},
		},
		"path":       map[string]any{"type": "string"},
		"contents":   map[string]any{"type": "string"},
		"from":       map[string]any{"type": "string"},
		"to":         map[string]any{"type": "string"},
		"database":   map[string]any{"type": "string"},
		"statements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"on_error":   map[string]any{"enum": []string{"fail", "continue"}},
		"sql_file":   map[string]any{"type": "string"},
		"name":       map[string]any{"type": "string"},
	},
}

var conditionSchema = map[string]any{
	"type":     "object",
	"required": []string{"type"},
	"properties": map[string]any{
		"type":      map[string]any{"enum": []string{"env", "cmd", "sql"}},
		"name":      map[string]any{"type": "string"},
		"cmd":       map[string]any{"type": "string"},
		"args":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"database":  map[string]any{"type": "string"},
		"query":     map[string]any{"type": "string"},
		"predicate": map[string]any{"enum": []string{"non_empty", "empty"}},
	},
}

var runSpecSchema = map[string]any{
	"type":     "object",
	"required": []string{"cmd"},
	"properties": map[string]any{
		"cmd":     map[string]any{"type": "string"},
		"args":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"stdin":   map[string]any{"type": "string"},
		"timeout": map[string]any{"type": "string"},
		"env":     map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
	},
}

var stepSchema = map[string]any{
	"type":     "object",
	"required": []string{"run", "expect"},
	"properties": map[string]any{
		"name":     map[string]any{"type": "string"},
		"setup":    map[string]any{"type": "array", "items": actionSchema},
		"run":      runSpecSchema,
		"expect":   map[string]any{"type": "object"},
		"teardown": map[string]any{"type": "array", "items": actionSchema},
	},
}

var testSchema = map[string]any{
	"type":     "object",
	"required": []string{"name"},
	"properties": map[string]any{
		"name":     map[string]any{"type": "string"},
		"serial":   map[string]any{"type": "boolean"},
		"skip_if":  map[string]any{"type": "array", "items": conditionSchema},
		"require":  map[string]any{"type": "array", "items": conditionSchema},
		"setup":    map[string]any{"type": "array", "items": actionSchema},
		"teardown": map[string]any{"type": "array", "items": actionSchema},
		"steps":    map[string]any{"type": "array", "items": stepSchema},
		"run":      runSpecSchema,
		"expect":   map[string]any{"type": "object"},
	},
}

var databaseSchema = map[string]any{
	"type":     "object",
	"required": []string{"driver", "url"},
	"properties": map[string]any{
		"driver":    map[string]any{"enum": []string{"sqlite", "postgres"}},
		"url":       map[string]any{"type": "string"},
		"isolation": map[string]any{"type": "string"},
	},
}

var specJSONSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title":   "bintest spec document",
	"type":    "object",
	"properties": map[string]any{
		"binary":          map[string]any{"type": "string"},
		"timeout":         map[string]any{"type": "string"},
		"env":             map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
		"inherit_env":     map[string]any{"type": "boolean"},
		"serial":          map[string]any{"type": "boolean"},
		"capture_fs_diff": map[string]any{"type": "boolean"},
		"sandbox_dir":     map[string]any{"type": "string"},
		"databases":       map[string]any{"type": "object", "additionalProperties": databaseSchema},
		"setup":           map[string]any{"type": "array", "items": actionSchema},
		"teardown":        map[string]any{"type": "array", "items": actionSchema},
		"tests":           map[string]any{"type": "array", "items": testSchema},
	},
}
