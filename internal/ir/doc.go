// Package ir provides the data model shared by the compiler, the build
// engine and the store.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - A Build maps each DefinitionKey to exactly one BuiltDefinition
//   - Definition text is compared only after NormalizeText
//   - All JSON tags use snake_case
package ir
