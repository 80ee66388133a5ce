// Package config defines the format-agnostic configuration model for the
// test driver, along with the Loader interface for reading it from a
// concrete source.
//
// The `config.Model` is the single source of truth for the `app` package.
// Concrete loaders, such as for HCL, are provided in separate packages.
package config
