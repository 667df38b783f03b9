package generic

// Void is the zero-size "no value" type.
type Void = struct{}
