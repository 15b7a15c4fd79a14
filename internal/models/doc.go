// Package models defines the records rdex persists and the JSON:API document types it reads from
// the RDE backend.
//
// The package contains two categories of types:
//
// 1. JSON:API documents: opaque vendor resources with thin typed accessors
//   - [Document] : top-level response with single or collection data, included resources and meta
//   - [Resource] : a typed resource object whose attributes stay a map
//   - [Relationship] and [Identifier] : resource linkage
//
// 2. Persistent records: rows written to the local sqlite log
//   - [APICall] : one outbound REST request and its outcome
//   - [AIResult] : one prompt dispatch and the provider's answer
//
// Persistent records implement the [Model] interface and are stored through a [Repository].
package models
