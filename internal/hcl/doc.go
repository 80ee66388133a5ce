// Package hcl provides the concrete HCL implementation of config.Loader.
// It is responsible for file discovery and parsing, expression evaluation
// and translation into the format-agnostic config.Model.
package hcl
