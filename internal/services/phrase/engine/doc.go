// Package engine computes character-sheet phrases: free text carrying embedded
// formula blocks (${...}$), script blocks (%{...}%), dice rolls, inline prompts
// and prompt templates, evaluated against a live property bag.
//
// A Phrase is split into blocks by ExtractBlocks. Each block becomes a Formula
// which is preprocessed (sigils, prompt templates, inline prompts, rolls),
// evaluated by expr-lang with the domain functions injected, and optionally
// explained. Local variables assigned by one block flow into the blocks after
// it in the same phrase.
//
// The engine never reaches for ambient state: every collaborator it talks to
// (entities, dialogs, dice, templates, notifications, scripts) arrives on the
// Runtime passed to Compute.
package engine
