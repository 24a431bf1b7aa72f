// Package compiler turns a graph.Definition into live engine nodes.
//
// Every node kind maps to exactly one engine unit; the mapping is a type
// switch over graph.Params, so a kind without a unit is a compile-time
// omission rather than a silent runtime miss. Authored parameter values go
// through the shared graph schema (Convert) before they reach a unit.
//
// Rebuilding always disposes the previous graph first. There is no
// incremental diffing: units are never reused across builds.
package compiler
