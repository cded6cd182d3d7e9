package instbatch

import "hash/fnv"

// MetadataValue describes one named per-instance property packed into a
// window: where the property's sub-region starts within the window and
// how many bytes each instance occupies.
//
// Within a window, a property's values for all instances are laid out
// contiguously: the value for local instance i lives at
// Offset + i*Size bytes from the window base. Properties never
// interleave, which is what allows the partial-window upload path to
// issue one contiguous write per property.
type MetadataValue struct {
	// NameID identifies the property. Use PropertyID to derive one from
	// a shader property name, or one of the predefined Property* IDs.
	NameID uint32

	// Offset is the byte offset of the property's sub-region from the
	// start of each window.
	Offset uint32

	// Size is the per-instance size of the property in bytes.
	// Must be a multiple of 16 (the constant-buffer vector stride).
	Size uint32
}

// PropertySpec declares a property when building a BatchDescription.
// Offsets are computed by NewBatchDescription in declaration order.
type PropertySpec struct {
	NameID uint32
	Size   uint32
}

// Predefined property IDs for the properties the culling pipeline and
// common shaders consume. IDs are FNV-1a hashes of the conventional
// shader property names, so hosts that derive IDs via PropertyID agree
// with them.
var (
	// PropertyObjectToWorld is the per-instance object-to-world matrix
	// (64 bytes, required for frustum culling).
	PropertyObjectToWorld = PropertyID("_ObjectToWorld")

	// PropertyWorldToObject is the inverse transform (64 bytes).
	PropertyWorldToObject = PropertyID("_WorldToObject")

	// PropertyBaseColor is a per-instance RGBA color (16 bytes).
	PropertyBaseColor = PropertyID("_BaseColor")
)

// PropertyID derives a stable property name ID from a shader property
// name. The same name always produces the same ID across processes.
func PropertyID(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}
