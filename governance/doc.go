// Package governance decides whether viewers may consume categorized resources
// (buyable event categories and named chat commands) under the configured
// cooldown policy.
//
// Usage is tracked per in-game calendar day in a ledger with two namespaces:
//   - eventUsage: event categories such as good, bad, neutral and doom.
//   - commandUsage: chat command names such as raid or weather.
//
// Cooldowns are global across all viewers: if anyone triggers an event, it
// counts against the cap for everyone. Entries older than the cooldown window
// are pruned lazily on every check and eagerly by Cleanup, which runs at most
// once per in-game day.
//
// The engine never returns errors. Unknown categories fall back to the default
// cap and unknown commands to the default category.
package governance
