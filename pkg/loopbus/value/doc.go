/*
Package value provides the dynamic values carried by loopbus events.

# Overview

A Value is an immutable, variant-typed value. An Args is an immutable ordered
list of Values and is the payload of every emitted event. Once built, an Args
is shared read-only by every delivery spawned from the same emit, on any
number of goroutines, without locking.

# Kinds

	KindNull    null
	KindBool    true / false
	KindInt32   signed 32-bit integer
	KindUint32  unsigned 32-bit integer
	KindInt64   signed 64-bit integer
	KindUint64  unsigned 64-bit integer
	KindDouble  float64
	KindString  UTF-8 string
	KindObject  ordered list of key/value members
	KindArray   ordered list of values

Objects keep member order. Duplicate keys are kept; Get returns the first.

# Copy Semantics

Constructors copy the slices they are given and Value has no mutators, so a
caller may reuse or modify its own buffers as soon as a constructor returns.
Clone returns a deep copy for callers that need fresh backing storage.

# Bridges

	v, err := value.FromGo(map[string]any{"id": 7, "tags": []string{"a"}})
	v, err := value.ParseJSON([]byte(`{"b":1,"a":2}`)) // keeps b before a
	raw, err := json.Marshal(v)
	native := v.Interface()
*/
package value
