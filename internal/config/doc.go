// Package config loads stack files and engine settings.
//
// A stack is one or more YAML files declaring variables, providers,
// resources and outputs. [LoadFiles] parses and merges them, keeping file
// and line positions for diagnostics. [ResolveVariables] computes variable
// values from defaults, the environment, var files and flags, and
// [Stack.Validate] performs the checks that need no provider.
//
// Engine settings (parallelism, retry, timeouts, logging) come from
// [LoadSettings], backed by viper with CONVERGE_ environment overrides.
package config
