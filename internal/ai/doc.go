// Package ai sends templated prompts to one of three text-generation providers.
//
// A [Dispatcher] owns one [Provider] per configured backend: [OpenAI] (chat completions),
// [Gemini] (generateContent) and [LocalLLM] (Ollama's /api/generate, or any OpenAI-compatible
// server). [Dispatcher.Send] truncates oversized prompts, resolves the provider and model
// defaults, calls the adapter once and returns a [Result]. There are no retries and no streaming.
//
// Prompts come from a [Template]. Render replaces every declared {key} or {{key}} placeholder
// with a context value, fails with [shared.ErrTemplateKey] when a key is missing, and leaves any
// other brace text alone so templates can carry JSON examples.
package ai
