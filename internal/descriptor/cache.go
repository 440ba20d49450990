package descriptor

type cached struct {
	sig Signature
	err error
}

// Cache memoizes parsed signatures for one module. The zero value is ready
// to use.
type Cache struct {
	sigs   map[string]cached
	fields map[string]Type
}

// Signature returns the parsed descriptor for raw. On a parse error it
// returns Default() together with the error, so callers can continue with
// the fallback and report once.
func (c *Cache) Signature(raw string) (Signature, error) {
	if c.sigs == nil {
		c.sigs = make(map[string]cached)
	}
	if e, ok := c.sigs[raw]; ok {
		return e.sig, e.err
	}
	sig, err := Parse(raw)
	if err != nil {
		sig = Default()
		sig.Raw = raw
	}
	c.sigs[raw] = cached{sig: sig, err: err}
	return sig, err
}

// Field returns the parsed field type for raw; malformed input yields an
// int type, the most common single-slot default.
func (c *Cache) Field(raw string) (Type, error) {
	if c.fields == nil {
		c.fields = make(map[string]Type)
	}
	if t, ok := c.fields[raw]; ok {
		return t, nil
	}
	t, err := ParseField(raw)
	if err != nil {
		return Type{Kind: Int}, err
	}
	c.fields[raw] = t
	return t, nil
}

// Len returns the number of distinct method descriptors seen.
func (c *Cache) Len() int { return len(c.sigs) }
