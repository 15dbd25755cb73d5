// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NANOGrav Timing Working Group

package toa

// Flag is a single "-key value" pair attached to a TOA.
type Flag struct {
	Key   string
	Value string
}

// Flags holds TOA flags in the order they were declared.
type Flags []Flag

// Get returns the value for key and whether it is present.
func (f Flags) Get(key string) (string, bool) {
	for _, fl := range f {
		if fl.Key == key {
			return fl.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (f Flags) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Set replaces the value for key or appends it.
func (f *Flags) Set(key, value string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Flag{Key: key, Value: value})
}

// Delete removes key if present.
func (f *Flags) Delete(key string) {
	out := (*f)[:0]
	for _, fl := range *f {
		if fl.Key != key {
			out = append(out, fl)
		}
	}
	*f = out
}

// Keys returns the flag names in declaration order.
func (f Flags) Keys() []string {
	keys := make([]string, len(f))
	for i, fl := range f {
		keys[i] = fl.Key
	}
	return keys
}

// Clone returns an independent copy.
func (f Flags) Clone() Flags {
	if f == nil {
		return nil
	}
	out := make(Flags, len(f))
	copy(out, f)
	return out
}
