// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside agentgraph.
//
// Core goals:
//   - A single non-streaming Generate call per agent iteration
//   - Normalize tool / function call representation (ToolDefinition, core.ToolCall)
//   - Classify provider failures (transient vs fatal) for the step executor
//   - Facilitate lightweight mocking for tests (MockModel, ScriptedModel, Func)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers remain decoupled from vendor SDKs.
package model
