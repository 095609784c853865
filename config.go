package ruler

// Config controls Machine behavior.
//
// Example:
//
//	config := ruler.DefaultConfig()
//	config.AdditionalNameStateReuse = true
//	m := ruler.NewWithConfig(config)
type Config struct {
	// AdditionalNameStateReuse backs each field's byte machine with a
	// canonical-key NameState cache (spec.md §6). Equal predicates on one
	// field share a single reference-counted NameState whether or not this
	// is set, so enabling it does not change which NameState a rule's
	// sub-rule is added to.
	// Default: false
	AdditionalNameStateReuse bool
}

// DefaultConfig returns the default configuration.
//
// Example:
//
//	config := ruler.DefaultConfig()
//	config.AdditionalNameStateReuse = true
//	m := ruler.NewWithConfig(config)
func DefaultConfig() Config {
	return Config{
		AdditionalNameStateReuse: false,
	}
}

// Validate checks if the configuration is valid.
//
// Config currently has no parameter with a numeric or enum range to
// violate; Validate exists so callers can check configuration the same way
// regardless of which fields it grows in the future.
func (c Config) Validate() error {
	return nil
}
