// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration in ~/.papersoul/config.toml
//   - PromptStore: editable prompt templates in ~/.papersoul/prompts
package file
